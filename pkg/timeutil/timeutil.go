package timeutil

import (
	"context"
	"fmt"
	"time"
)

// Now is swappable for tests.
var Now = time.Now

// ParseWire parses a backend UTC timestamp (RFC 3339).
func ParseWire(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse wire timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatWire renders a timestamp in the backend's UTC wire form.
func FormatWire(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// InZone converts a wire timestamp to the viewer's region for display.
func InZone(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc)
}

// FormatCountdown renders a remaining duration as "1h 1m 1s", eliding
// leading zero components. Negative durations render as "0s".
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Countdown tracks time remaining until a fixed UTC instant. Remaining
// is always recomputed from the instant, never decremented, so a slow
// or skipped tick cannot accumulate drift.
type Countdown struct {
	Target time.Time
}

// NewCountdown builds a countdown toward a scheduled UTC instant.
func NewCountdown(target time.Time) *Countdown {
	return &Countdown{Target: target.UTC()}
}

// Remaining returns the time left, clamped at zero.
func (c *Countdown) Remaining() time.Duration {
	d := c.Target.Sub(Now())
	if d < 0 {
		return 0
	}
	return d
}

// Done reports whether the instant has passed.
func (c *Countdown) Done() bool { return c.Remaining() == 0 }

// Run invokes fn once per second with the remaining duration until it
// reaches zero or the context is cancelled. fn is called immediately
// with the initial remainder.
func (c *Countdown) Run(ctx context.Context, fn func(remaining time.Duration)) {
	fn(c.Remaining())
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining := c.Remaining()
			fn(remaining)
			if remaining == 0 {
				return
			}
		}
	}
}
