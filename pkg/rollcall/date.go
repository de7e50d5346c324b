package rollcall

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// msDatePattern matches the "/Date(1700000000000+0100)/" form used by the
// upstream JSON export.
var msDatePattern = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// ParseDate parses a vote timestamp. Unrecognized input yields the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	if m := msDatePattern.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}
		}
		t := time.UnixMilli(ms).UTC()
		if m[2] != "" {
			if zone, err := time.Parse("-0700", m[2]); err == nil {
				_, offset := zone.Zone()
				t = t.In(time.FixedZone("", offset))
			}
		}
		return t
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}

	return time.Time{}
}
