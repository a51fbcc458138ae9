package transforms

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Naive is the location of wall-clock times whose zone was discarded.
// It has a zero offset but, unlike time.UTC, does not claim to be UTC.
var Naive = time.FixedZone("", 0)

var errNotATime = errors.New("not a date/time")

// layouts tried in order by ParseTime; zoned layouts come first.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.ANSIC,
	time.UnixDate,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateTime,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	time.DateOnly,
	"2006/01/02 15:04:05",
	"2006/01/02",
	"20060102T150405",
	"20060102",
	"02 Jan 2006 15:04:05",
	"02 Jan 2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	time.Kitchen,
	time.TimeOnly,
	"15:04",
}

// ParseTime parses s with the first layout that accepts it. Values without
// a zone are returned in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", errNotATime)
	}

	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", errNotATime, s)
}

// toTime accepts time.Time values and strings.
func toTime(v any, loc *time.Location) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return time.Time{}, fmt.Errorf("%w: nil", errNotATime)
		}

		return *x, nil
	case string:
		return ParseTime(x, loc)
	case []byte:
		return ParseTime(string(x), loc)
	default:
		return time.Time{}, fmt.Errorf("%w: %T", errNotATime, v)
	}
}

// Datetime parses a date/time keeping its zone; values without a zone are UTC.
func Datetime(v any) (any, error) {
	return toTime(v, time.UTC)
}

// DatetimeNaive parses a date/time and discards its zone, keeping the wall clock.
func DatetimeNaive(v any) (any, error) {
	t, err := toTime(v, Naive)
	if err != nil {
		return nil, err
	}

	return wallClock(t, Naive), nil
}

// DatetimeNaiveToUTC reads the wall clock of a date/time as UTC.
func DatetimeNaiveToUTC(v any) (any, error) {
	t, err := toTime(v, time.UTC)
	if err != nil {
		return nil, err
	}

	return wallClock(t, time.UTC), nil
}

// TimeOfDay returns the "15:04:05" part of a date/time.
func TimeOfDay(v any) (any, error) {
	t, err := toTime(v, time.UTC)
	if err != nil {
		return nil, err
	}

	return t.Format("15:04:05.999999999"), nil
}

// Date returns the "2006-01-02" part of a date/time.
func Date(v any) (any, error) {
	t, err := toTime(v, time.UTC)
	if err != nil {
		return nil, err
	}

	return t.Format(time.DateOnly), nil
}

func wallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
