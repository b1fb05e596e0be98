package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	at := time.Date(2024, 3, 10, 7, 0, 0, 0, time.FixedZone("X", -5*3600))
	c := NewFixed(at)
	if got := c.Now(); !got.Equal(at) || got.Location() != time.UTC {
		t.Errorf("Now() = %v, want %v in UTC", got, at)
	}
}

func TestStepping(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewStepping(start, time.Second)
	for i := range 3 {
		want := start.Add(time.Duration(i) * time.Second)
		if got := c.Now(); !got.Equal(want) {
			t.Fatalf("call %d: Now() = %v, want %v", i, got, want)
		}
	}
}

func TestSystemIsUTC(t *testing.T) {
	if loc := NewSystem().Now().Location(); loc != time.UTC {
		t.Errorf("location = %v, want UTC", loc)
	}
}
