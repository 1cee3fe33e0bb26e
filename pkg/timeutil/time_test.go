package timeutil

import (
	"testing"
	"time"
)

func TestNowIsUTC(t *testing.T) {
	now := Now()
	if now.Location() != time.UTC {
		t.Errorf("Now() location = %v, want UTC", now.Location())
	}
}

func TestFromUnix(t *testing.T) {
	ts := FromUnix(1760357528)
	if ts.Location() != time.UTC {
		t.Errorf("FromUnix location = %v, want UTC", ts.Location())
	}
	if ts.Unix() != 1760357528 {
		t.Errorf("FromUnix round trip = %d, want 1760357528", ts.Unix())
	}
}

func TestParseDate(t *testing.T) {
	parsed, err := ParseDate("2006-01-02", "2026-08-31")
	if err != nil {
		t.Fatalf("ParseDate returned error: %v", err)
	}
	if parsed.Year() != 2026 || parsed.Month() != time.August || parsed.Day() != 31 {
		t.Errorf("ParseDate = %v, want 2026-08-31", parsed)
	}
	if parsed.Location() != time.UTC {
		t.Errorf("ParseDate location = %v, want UTC", parsed.Location())
	}

	if _, err := ParseDate("2006-01-02", "not-a-date"); err == nil {
		t.Error("ParseDate accepted invalid input")
	}
}
