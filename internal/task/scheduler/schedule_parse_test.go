package scheduler

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{name: "daily at 2", in: "0 2 * * *", ok: true},
		{name: "weekly monday", in: "0 8 * * 1", ok: true},
		{name: "hourly", in: "0 * * * *", ok: true},
		{name: "step", in: "*/15 * * * *", ok: true},
		{name: "descriptor", in: "@daily", ok: true},
		{name: "every", in: "@every 90m", ok: true},
		{name: "padded", in: "  0 3 * * *  ", ok: true},
		{name: "empty", in: "   ", ok: false},
		{name: "six fields", in: "0 0 2 * * *", ok: false},
		{name: "four fields", in: "0 2 * *", ok: false},
		{name: "minute out of range", in: "61 * * * *", ok: false},
		{name: "garbage", in: "not a cron", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSchedule(tt.in)
			if tt.ok && err != nil {
				t.Fatalf("expected ok, got err=%v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidSchedule) {
					t.Fatalf("expected ErrInvalidSchedule, got %v", err)
				}
			}
		})
	}
}

func TestNextRunsUsesLocation(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	from := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC) // 08:00 EDT

	runs, err := NextRuns("0 2 * * *", from, ny, 2)
	if err != nil {
		t.Fatalf("NextRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	want := time.Date(2024, 5, 7, 6, 0, 0, 0, time.UTC)
	if !runs[0].Equal(want) {
		t.Fatalf("first run = %s, want %s", runs[0].UTC(), want)
	}
	if got := runs[1].Sub(runs[0]); got != 24*time.Hour {
		t.Fatalf("gap = %s, want 24h", got)
	}
}
