// Package schedule implements the duration algebra and task grouping
// used to lay out a chaos experiment on a timeline.
//
// Durations travel as strings like "1h2m30s" because that is what the
// workflow engine consumes; arithmetic happens on plain seconds.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var durationToken = regexp.MustCompile(`^(\d+)([smhd])`)

// ParseDuration converts a concatenated duration string such as
// "1h2m30s" into seconds. The literal "0" is accepted. Anything that is
// not a sequence of <number><unit> tokens is an error.
func ParseDuration(s string) (int, error) {
	if s == "0" {
		return 0, nil
	}
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	total := 0
	rest := s
	for rest != "" {
		m := durationToken.FindStringSubmatch(rest)
		if m == nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		switch m[2] {
		case "s":
			total += v
		case "m":
			total += v * 60
		case "h":
			total += v * 3600
		case "d":
			total += v * 86400
		}
		rest = rest[len(m[0]):]
	}
	return total, nil
}

// FormatDuration renders seconds in canonical "XdYhZmWs" form with zero
// components elided. Zero renders as "0".
func FormatDuration(seconds int) string {
	if seconds == 0 {
		return "0"
	}
	units := []struct {
		secs   int
		symbol string
	}{
		{86400, "d"},
		{3600, "h"},
		{60, "m"},
		{1, "s"},
	}
	var b strings.Builder
	for _, u := range units {
		if seconds >= u.secs {
			fmt.Fprintf(&b, "%d%s", seconds/u.secs, u.symbol)
			seconds %= u.secs
		}
	}
	return b.String()
}

// SumDurations parses every operand and returns the canonical form of
// their sum.
func SumDurations(durations ...string) (string, error) {
	total := 0
	for _, d := range durations {
		v, err := ParseDuration(d)
		if err != nil {
			return "", err
		}
		total += v
	}
	return FormatDuration(total), nil
}
