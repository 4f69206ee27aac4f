package usecase

import (
	"math/rand/v2"
	"strings"
)

const greetingPrefix = "greeting:"

var greetings = map[string][]string{
	"en": {"Hello!", "Hi!"},
	"fr": {"Bonjour!"},
	"zh": {"你好！", "您好！"},
}

// GreetingPrompt builds the prompt that asks the worker to say hi in language.
func GreetingPrompt(language string) string {
	return greetingPrefix + language
}

// IsGreeting reports whether text is a greeting prompt.
func IsGreeting(text string) bool {
	return strings.HasPrefix(text, greetingPrefix)
}

// greetingLanguage extracts the language of a greeting prompt. Malformed
// prompts, including unfilled "{language}" templates, yield "".
func greetingLanguage(text string) string {
	lang, ok := strings.CutPrefix(text, greetingPrefix)
	if !ok || strings.Contains(lang, ":") || strings.HasPrefix(lang, "{") {
		return ""
	}
	return lang
}

// Greeting returns a greeting for a language or locale ("zh_CN" uses "zh").
// Unknown languages fall back to English.
func Greeting(language string) string {
	lang, _, _ := strings.Cut(language, "_")
	options, ok := greetings[strings.ToLower(lang)]
	if !ok {
		options = greetings["en"]
	}
	if len(options) == 1 {
		return options[0]
	}
	return options[rand.IntN(len(options))]
}
