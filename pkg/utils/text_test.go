package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("ñandú corre", 5); got != "ñandú..." {
		t.Errorf("multibyte: got %q", got)
	}
}

func TestCollapseSpaces(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"a  b", "a b"},
		{"\ta\r\n\nb  ", "a b"},
		{"uno dos", "uno dos"},
	}
	for _, tt := range tests {
		if got := CollapseSpaces(tt.in); got != tt.want {
			t.Errorf("CollapseSpaces(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount("  one two\tthree\n"); n != 3 {
		t.Errorf("WordCount = %d", n)
	}
	if n := WordCount(""); n != 0 {
		t.Errorf("WordCount empty = %d", n)
	}
}
