package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// renderNoResult builds the reply sent when no engine produced a result.
func renderNoResult(keywords string, suggestions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "No contents for **%q**, you can try the following keywords:\n", keywords)
	b.WriteString("\n----\n")
	for _, s := range suggestions {
		fmt.Fprintf(&b, "- **%s**\n", s)
	}
	return b.String()
}

// renderHistory renders entries as a markdown table, resolving display names
// through names.
func renderHistory(ctx domain.Context, entries []domain.HistoryEntry, names func(ctx domain.Context, id string) string) string {
	var b strings.Builder
	b.WriteString("Search history:\n")
	b.WriteString("| From | Keyword | Time |\n")
	b.WriteString("|------|---------|------|\n")
	for _, e := range entries {
		user := fmt.Sprintf("**%q**", displayName(ctx, names, e.Sender))
		if e.Group != "" {
			user += fmt.Sprintf(" (%s)", displayName(ctx, names, e.Group))
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", user, escapeCell(e.Cmd), e.When.Format(historyTimeLayout))
	}
	return b.String()
}

func displayName(ctx domain.Context, names func(domain.Context, string) string, id string) string {
	if names != nil {
		if n := names(ctx, id); n != "" {
			return n
		}
	}
	return id
}

// escapeCell keeps user text from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
