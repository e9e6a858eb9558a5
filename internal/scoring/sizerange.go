package scoring

import (
	"strconv"
	"strings"
)

// ParseSizeRange extracts a representative employee count from a
// self-reported size range. Accepted shapes: "11-50" or "11 - 50"
// (midpoint), "500+" (lower bound), and a bare integer. Anything else is
// treated as missing.
func ParseSizeRange(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(strings.ToLower(s), " employees")
	s = strings.TrimSpace(s)

	if lo, hi, ok := splitRange(s); ok {
		return (lo + hi) / 2, true
	}

	if rest, ok := strings.CutSuffix(s, "+"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil && n >= 0 {
			return n, true
		}
		return 0, false
	}

	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n, true
	}
	return 0, false
}

func splitRange(s string) (lo, hi int, ok bool) {
	// "a-b", "a - b", "a to b"
	var parts []string
	switch {
	case strings.Contains(s, "-"):
		parts = strings.SplitN(s, "-", 2)
	case strings.Contains(s, " to "):
		parts = strings.SplitN(s, " to ", 2)
	default:
		return 0, 0, false
	}

	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || lo < 0 {
		return 0, 0, false
	}
	hi, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}
