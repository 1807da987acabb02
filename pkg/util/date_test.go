package util

import (
	"testing"
	"time"
)

func TestLookbackRangeStableWithinBar(t *testing.T) {
	a := time.Date(2024, 10, 10, 1, 0, 0, 0, time.UTC)
	b := time.Date(2024, 10, 10, 23, 59, 0, 0, time.UTC)
	fa, ta := LookbackRange(a, 30, 24*time.Hour)
	fb, tb := LookbackRange(b, 30, 24*time.Hour)
	if !fa.Equal(fb) || !ta.Equal(tb) {
		t.Fatalf("range moved within one day: %v-%v vs %v-%v", fa, ta, fb, tb)
	}
	if DateKey(fa) != "20240910" || DateKey(ta) != "20241010" {
		t.Fatalf("unexpected keys %s %s", DateKey(fa), DateKey(ta))
	}
}
