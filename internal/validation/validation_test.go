package validation

import (
	"regexp"
	"strings"
	"testing"
)

func TestValidateUserInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{
			name:  "plain handle",
			input: "alice",
			valid: true,
		},
		{
			name:  "alphanumeric at max length",
			input: strings.Repeat("a", 100),
			valid: true,
		},
		{
			name:  "empty input",
			input: "",
			valid: false,
		},
		{
			name:  "one over max length",
			input: strings.Repeat("a", 101),
			valid: false,
		},
		{
			name:  "script tag",
			input: "alice<script>alert(1)</script>",
			valid: false,
		},
		{
			name:  "script tag uppercase",
			input: "<SCRIPT>",
			valid: false,
		},
		{
			name:  "path traversal",
			input: "../etc/passwd",
			valid: false,
		},
		{
			name:  "statement separator",
			input: "alice;drop",
			valid: false,
		},
		{
			name:  "sql comment",
			input: "alice--",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateUserInput(tt.input)
			if got != tt.valid {
				t.Fatalf("ValidateUserInput(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"@alice", "alice"},
		{"  @alice ", "alice"},
		{"@@alice", "alice"},
		{"alice", "alice"},
	}

	for _, tt := range tests {
		if got := NormalizeHandle(tt.in); got != tt.want {
			t.Fatalf("NormalizeHandle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewOrderIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD\d{10,}\d{4}$`)

	id := NewOrderID()
	if !pattern.MatchString(id) {
		t.Fatalf("NewOrderID() = %q, does not match ORD<timestamp><suffix>", id)
	}
}
