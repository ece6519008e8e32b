package ledger

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the day key format, also used in ledger file names.
const DayLayout = "2006-01-02"

// Dir holds one ledger file per day.
const Dir = "urls"

// DayKey returns the calendar date of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayLayout)
}

// Path returns the ledger file path for a day key, e.g. urls/2025-04-01.txt.
func Path(day string) string {
	return Dir + "/" + day + ".txt"
}

// ValidDay reports whether day is a well-formed day key.
func ValidDay(day string) bool {
	_, err := time.Parse(DayLayout, day)
	return err == nil
}

// ParseLocation accepts an IANA zone name ("America/Los_Angeles"), "Local",
// "UTC", or a fixed offset such as "-07:00" / "+0530".
func ParseLocation(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc", "Z":
		return time.UTC, nil
	}
	if s[0] == '+' || s[0] == '-' {
		for _, layout := range []string{"-07:00", "-0700", "-07"} {
			if t, err := time.Parse(layout, s); err == nil {
				_, off := t.Zone()
				return time.FixedZone("UTC"+s, off), nil
			}
		}
		return nil, fmt.Errorf("invalid utc offset %q", s)
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", s, err)
	}
	return loc, nil
}
