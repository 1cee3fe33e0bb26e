package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNullTimestamptzRoundTrip(t *testing.T) {
	if got := timePtr(nullTimestamptz(nil)); got != nil {
		t.Errorf("nil time round-tripped to %v", got)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	got := timePtr(nullTimestamptz(&now))
	if got == nil || !got.Equal(now) {
		t.Errorf("time round-tripped to %v, want %v", got, now)
	}
}

func TestDecimalNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "5000000", "12.345", "-7.5", "0.000001"} {
		d, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}

		n, err := decimalToNumeric(d)
		if err != nil {
			t.Fatalf("decimalToNumeric(%s): %v", s, err)
		}

		back, err := numericToDecimal(n)
		if err != nil {
			t.Fatalf("numericToDecimal(%s): %v", s, err)
		}
		if !back.Equal(d) {
			t.Errorf("round trip %s -> %s", d, back)
		}
	}
}
