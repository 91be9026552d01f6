package chat

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		maxRunes int
		want     string
	}{
		{name: "plain", raw: "alice", maxRunes: 10, want: "alice"},
		{name: "surrounding whitespace", raw: "  alice \n", maxRunes: 10, want: "alice"},
		{name: "whitespace only", raw: " \t\r\n ", maxRunes: 10, want: ""},
		{name: "empty", raw: "", maxRunes: 10, want: ""},
		{name: "truncated", raw: "abcdefgh", maxRunes: 5, want: "abcde"},
		{name: "truncation exposes whitespace", raw: "abcd efgh", maxRunes: 5, want: "abcd"},
		{name: "multibyte runes counted once", raw: "héllo wörld", maxRunes: 5, want: "héllo"},
		{name: "no truncation when disabled", raw: strings.Repeat("x", 300), maxRunes: 0, want: strings.Repeat("x", 300)},
		{name: "interior whitespace preserved", raw: "a b", maxRunes: 10, want: "a b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Sanitize(tc.raw, tc.maxRunes)
			if got != tc.want {
				t.Fatalf("Sanitize(%q, %d) = %q, want %q", tc.raw, tc.maxRunes, got, tc.want)
			}
		})
	}
}

func TestSanitizeNameLimit(t *testing.T) {
	raw := strings.Repeat("n", MaxNameRunes+50)
	got := Sanitize(raw, MaxNameRunes)
	if len([]rune(got)) != MaxNameRunes {
		t.Fatalf("sanitized name has %d runes, want %d", len([]rune(got)), MaxNameRunes)
	}
}
