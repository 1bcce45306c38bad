// Package timearg parses the time arguments accepted by --since and
// --until: a relative offset like "12h", "7d", "2w" or "1m", or an
// absolute date.
package timearg

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var relativeRegexp = regexp.MustCompile(`^(\d+)([hdwm])$`)

// Absolute layouts tried in order after the relative pattern fails.
var layouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parse resolves arg against now. Relative offsets count backwards from
// now; anything that is not a relative offset must parse as an absolute
// date or the whole argument is rejected.
func Parse(arg string, now time.Time) (time.Time, error) {
	if m := relativeRegexp.FindStringSubmatch(arg); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time argument %q: %w", arg, err)
		}
		switch m[2] {
		case "h":
			return now.Add(-time.Duration(n) * time.Hour), nil
		case "d":
			return now.AddDate(0, 0, -n), nil
		case "w":
			return now.AddDate(0, 0, -7*n), nil
		case "m":
			return now.AddDate(0, -n, 0), nil
		}
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, arg, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time argument %q: want <n>h|d|w|m or a date like 2006-01-02", arg)
}
