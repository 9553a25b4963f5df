package chat

import (
	"strings"
	"testing"
)

func TestGenerateName(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"short message", "What is staking", "What is staking"},
		{"exactly six words", "one two three four five six", "one two three four five six"},
		{"truncates to six words", "Swap 10 SOL for USDC please now", "Swap 10 SOL for USDC please..."},
		{"strips punctuation", "What's the price of SOL?!", "What s the price of SOL"},
		{"collapses whitespace", "  hello    world  ", "hello world"},
		{"blank falls back", "   ", DefaultName},
		{"only punctuation falls back", "?!...", DefaultName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GenerateName(tc.content); got != tc.want {
				t.Errorf("GenerateName(%q) = %q, want %q", tc.content, got, tc.want)
			}
		})
	}
}

func TestGenerateNameHardLengthLimit(t *testing.T) {
	long := strings.Repeat("antidisestablishmentarianism ", 6)
	name := GenerateName(long)
	if len(name) > maxNameLen {
		t.Errorf("name length %d exceeds limit %d: %q", len(name), maxNameLen, name)
	}
	if !strings.HasSuffix(name, ellipsis) {
		t.Errorf("expected truncated name to end with ellipsis, got %q", name)
	}
}

func TestStorageKey(t *testing.T) {
	if got := StorageKey("0xAbC"); got != "chat_history_0xAbC" {
		t.Errorf("unexpected storage key %q", got)
	}
}
