// Package numparse implements spec §6.5's numeric and time-interval input
// grammar: decimal/hex/octal integers with an optional multiplier suffix,
// and interval specs like "1.5s" or "1/2m".
//
// Pure standard library. No repo in the example pack implements a
// reusable unit-suffixed-integer parser as a library — this is one of the
// few components with no ecosystem grounding; see DESIGN.md.
package numparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// multipliers maps each accepted suffix to its byte multiplier.
var multipliers = map[string]int64{
	"s":  0, // resolved by caller to hardbs; 0 is a sentinel, not a value
	"k":  1000,
	"Ki": 1024,
	"M":  1000 * 1000,
	"Mi": 1024 * 1024,
	"G":  1000 * 1000 * 1000,
	"Gi": 1024 * 1024 * 1024,
	"T":  1000 * 1000 * 1000 * 1000,
	"Ti": 1024 * 1024 * 1024 * 1024,
}

// ParseSize parses a decimal, 0x-prefixed hex, or 0-prefixed octal integer
// optionally followed by a multiplier suffix. hardbs is substituted for the
// "s" (sector) suffix.
func ParseSize(s string, hardbs int64) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("numparse: empty size")
	}
	digits, suffix := splitSuffix(s)
	n, err := strconv.ParseInt(digits, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("numparse: invalid integer %q: %w", digits, err)
	}
	if suffix == "" {
		return n, nil
	}
	if suffix == "s" {
		return n * hardbs, nil
	}
	mult, ok := multipliers[suffix]
	if !ok {
		return 0, fmt.Errorf("numparse: unknown size suffix %q", suffix)
	}
	return n * mult, nil
}

func splitSuffix(s string) (digits, suffix string) {
	i := len(s)
	for i > 0 && !isDigitOrHex(s[i-1]) {
		i--
	}
	return s[:i], s[i:]
}

func isDigitOrHex(b byte) bool {
	return b >= '0' && b <= '9' ||
		b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F' ||
		b == 'x' || b == 'X'
}

// ParseInterval parses "1[.5][smhd]" or "1/2[smhd]" into a time.Duration.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("numparse: empty interval")
	}
	unit := s[len(s)-1]
	var unitDur time.Duration
	body := s
	switch unit {
	case 's':
		unitDur = time.Second
		body = s[:len(s)-1]
	case 'm':
		unitDur = time.Minute
		body = s[:len(s)-1]
	case 'h':
		unitDur = time.Hour
		body = s[:len(s)-1]
	case 'd':
		unitDur = 24 * time.Hour
		body = s[:len(s)-1]
	default:
		unitDur = time.Second
	}
	if body == "" {
		return 0, fmt.Errorf("numparse: invalid interval %q", s)
	}
	if idx := strings.IndexByte(body, '/'); idx >= 0 {
		num, err := strconv.ParseFloat(body[:idx], 64)
		if err != nil {
			return 0, fmt.Errorf("numparse: invalid interval numerator %q: %w", body[:idx], err)
		}
		den, err := strconv.ParseFloat(body[idx+1:], 64)
		if err != nil || den == 0 {
			return 0, fmt.Errorf("numparse: invalid interval denominator %q", body[idx+1:])
		}
		return time.Duration(float64(unitDur) * num / den), nil
	}
	v, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return 0, fmt.Errorf("numparse: invalid interval %q: %w", s, err)
	}
	return time.Duration(float64(unitDur) * v), nil
}
