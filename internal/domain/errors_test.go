package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrNoEngines", ErrNoEngines, "no engines configured"},
		{"ErrSessionUnavailable", ErrSessionUnavailable, "session unavailable"},
		{"ErrNoAnswer", ErrNoAnswer, "no answer"},
		{"ErrUpstreamTimeout", ErrUpstreamTimeout, "upstream timeout"},
		{"ErrUpstreamRateLimit", ErrUpstreamRateLimit, "upstream rate limit"},
		{"ErrInternal", ErrInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected %s to be %q, got %q", tt.name, tt.expected, tt.err.Error())
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{"wrapped ErrSessionUnavailable", fmt.Errorf("op=pool.GetSession: %w", ErrSessionUnavailable), ErrSessionUnavailable, true},
		{"wrapped ErrUpstreamTimeout", fmt.Errorf("op=chat.Ask: %w", ErrUpstreamTimeout), ErrUpstreamTimeout, true},
		{"ErrNoAnswer is not ErrNotFound", ErrNoAnswer, ErrNotFound, false},
		{"ErrNoEngines is not ErrInternal", ErrNoEngines, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if errors.Is(tt.err, tt.target) != tt.expected {
				t.Errorf("Expected errors.Is(%v, %v) to be %v, got %v", tt.err, tt.target, tt.expected, !tt.expected)
			}
		})
	}
}
