package naming

import (
	"regexp"
	"strings"
	"time"
)

// Naming and string helpers for chaos cycle artifacts.
// Generated resource names must survive the round trip through the
// Kubernetes API (DNS-1123 labels) and the cycle work directory.

const (
	// MaxK8sNameLength is the DNS-1123 label limit.
	MaxK8sNameLength = 63

	// MaxFilenameLength is the common filesystem limit.
	MaxFilenameLength = 255

	// MaxLogLength bounds captured pod logs before they enter prompt
	// history.
	MaxLogLength = 3000
)

var (
	disallowedK8s  = regexp.MustCompile(`[^a-z0-9-]`)
	disallowedFile = regexp.MustCompile(`[<>:"/\\|?*\[\]]`)
	hyphenRuns     = regexp.MustCompile(`-+`)
)

// SanitizeK8sName converts an arbitrary string into a valid DNS-1123
// label: lowercase alphanumerics and hyphens, at most 63 characters,
// no leading or trailing hyphen. Empty results become "default-name".
func SanitizeK8sName(name string) string {
	name = strings.ReplaceAll(strings.ToLower(name), " ", "")
	name = disallowedK8s.ReplaceAllString(name, "")
	name = hyphenRuns.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "default-name"
	}
	if len(name) > MaxK8sNameLength {
		name = name[:MaxK8sNameLength]
	}
	return name
}

// SanitizeFilename strips characters that are invalid in file names,
// collapses hyphen runs, and truncates to 255 characters. Empty results
// become "default-filename".
func SanitizeFilename(filename string) string {
	filename = disallowedFile.ReplaceAllString(filename, "")
	filename = hyphenRuns.ReplaceAllString(filename, "-")
	filename = strings.ReplaceAll(filename, " ", "")
	filename = strings.Trim(filename, "-")
	if filename == "" {
		filename = "default-filename"
	}
	if len(filename) > MaxFilenameLength {
		filename = filename[:MaxFilenameLength]
	}
	return filename
}

// LimitString middle-elides s to at most max bytes, inserting "..."
// between the kept head and tail so both ends of a log survive.
func LimitString(s string, max int) string {
	const ellipsis = "..."
	if len(ellipsis) >= max {
		return ellipsis
	}
	if len(s) <= max {
		return s
	}
	half := (max - len(ellipsis)) / 2
	return s[:half] + ellipsis + s[len(s)-half:]
}

// Timestamp formats t the way cycle artifacts are stamped, e.g.
// "20260826_153012".
func Timestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// BulletPoints renders items as a markdown bullet list for prompts.
func BulletPoints(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}
