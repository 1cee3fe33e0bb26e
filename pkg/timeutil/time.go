package timeutil

import "time"

// Now returns the current time in UTC.
// Always use this instead of time.Now() to ensure timezone consistency
// between ledger timestamps and on-chain unix seconds.
func Now() time.Time {
	return time.Now().UTC()
}

// FromUnix converts on-chain unix seconds to a UTC time.
func FromUnix(sec uint64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// ToUTC converts a time.Time to UTC if it isn't already.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ParseDate parses a date string and returns a UTC time.
func ParseDate(layout, value string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
