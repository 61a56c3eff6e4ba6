package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseWire_RoundTrip(t *testing.T) {
	ts, err := ParseWire("2026-03-01T15:04:05Z")
	assert.NoError(t, err)
	assert.Equal(t, "2026-03-01T15:04:05Z", FormatWire(ts))

	_, err = ParseWire("not a timestamp")
	assert.Error(t, err)
}

func TestInZone(t *testing.T) {
	utc, err := ParseWire("2026-03-01T15:00:00Z")
	assert.NoError(t, err)

	loc, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)

	local := InZone(utc, loc)
	assert.Equal(t, 10, local.Hour())
	assert.True(t, local.Equal(utc))
}

func TestFormatCountdown(t *testing.T) {
	cases := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"hour boundary", 3661 * time.Second, "1h 1m 1s"},
		{"minutes only", 5*time.Minute + 12*time.Second, "5m 12s"},
		{"seconds only", 42 * time.Second, "42s"},
		{"zero", 0, "0s"},
		{"negative clamps", -3 * time.Second, "0s"},
		{"exact hour", time.Hour, "1h 0m 0s"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatCountdown(tc.d))
		})
	}
}

func TestCountdown_RecomputesFromInstant(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	defer func() { Now = time.Now }()
	Now = func() time.Time { return base }

	c := NewCountdown(base.Add(3661 * time.Millisecond * 1000))
	assert.Equal(t, 3661*time.Second, c.Remaining())
	assert.Contains(t, FormatCountdown(c.Remaining()), "1h")
	assert.Contains(t, FormatCountdown(c.Remaining()), "1m")

	// Jumping the clock forward must be reflected immediately; the
	// countdown never free-runs from its previous value.
	Now = func() time.Time { return base.Add(2 * time.Hour) }
	assert.Equal(t, time.Duration(0), c.Remaining())
	assert.True(t, c.Done())
}
