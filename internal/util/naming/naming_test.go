package naming

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeK8sName(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{
			name:     "already valid",
			in:       "carts-db-replicas",
			expected: "carts-db-replicas",
		},
		{
			name:     "mixed case with spaces",
			in:       "Carts DB has 2 replicas",
			expected: "cartsdbhas2replicas",
		},
		{
			name:     "disallowed characters dropped",
			in:       "front_end.latency<200ms!",
			expected: "frontendlatency200ms",
		},
		{
			name:     "hyphen runs collapsed",
			in:       "a---b--c",
			expected: "a-b-c",
		},
		{
			name:     "leading and trailing hyphens trimmed",
			in:       "--edge-case--",
			expected: "edge-case",
		},
		{
			name:     "empty input gets a fallback",
			in:       "!!!",
			expected: "default-name",
		},
		{
			name:     "truncated to 63",
			in:       strings.Repeat("a", 100),
			expected: strings.Repeat("a", 63),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeK8sName(tt.in); got != tt.expected {
				t.Errorf("SanitizeK8sName(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestSanitizeK8sNameIdempotent(t *testing.T) {
	inputs := []string{"Carts DB!", "a---b", "--x--", "", strings.Repeat("z", 80)}
	for _, in := range inputs {
		once := SanitizeK8sName(in)
		twice := SanitizeK8sName(once)
		if once != twice {
			t.Errorf("SanitizeK8sName not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{
			name:     "path separators removed",
			in:       `unittest/carts\db.py`,
			expected: "unittestcartsdb.py",
		},
		{
			name:     "spaces removed",
			in:       "steady state 1.py",
			expected: "steadystate1.py",
		},
		{
			name:     "empty input gets a fallback",
			in:       `<>:"|?*`,
			expected: "default-filename",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestLimitString(t *testing.T) {
	short := "short log"
	if got := LimitString(short, 3000); got != short {
		t.Errorf("Expected short string unchanged, got %q", got)
	}

	long := strings.Repeat("a", 2000) + strings.Repeat("b", 2000)
	got := LimitString(long, 3000)
	if len(got) > 3000 {
		t.Errorf("Expected at most 3000 bytes, got %d", len(got))
	}
	if !strings.Contains(got, "...") {
		t.Error("Expected elision marker in truncated string")
	}
	if !strings.HasPrefix(got, "a") || !strings.HasSuffix(got, "b") {
		t.Error("Expected head and tail of the original string to survive")
	}

	if got := LimitString(long, 3); got != "..." {
		t.Errorf("Expected bare marker when max <= marker, got %q", got)
	}
}

func TestTimestamp(t *testing.T) {
	ts := Timestamp(time.Date(2026, 8, 26, 15, 30, 12, 0, time.UTC))
	if ts != "20260826_153012" {
		t.Errorf("Timestamp = %q, want 20260826_153012", ts)
	}
}

func TestBulletPoints(t *testing.T) {
	got := BulletPoints([]string{"first", "second"})
	if got != "- first\n- second" {
		t.Errorf("BulletPoints = %q", got)
	}
	if BulletPoints(nil) != "" {
		t.Error("Expected empty string for no items")
	}
}
