package drange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qxcapital/drbot/internal/session"
)

func detect(t *testing.T, extra ...[]float64) (ConfirmationSet, BoundarySet) {
	t.Helper()
	bars := rdrFormation(17)
	for i, ohlc := range extra {
		// trading bars every five minutes from 10:30
		min := 30 + 5*i
		bars = append(bars, bar(17, 10, min, ohlc[0], ohlc[1], ohlc[2], ohlc[3]))
	}
	bounds := ComputeBoundaries(bars)
	return DetectConfirmations(bars, bounds), bounds
}

func TestDetectBullishConfirmation(t *testing.T) {
	confs, _ := detect(t,
		[]float64{4499, 4500, 4497, 4499.5},  // inside the range, no signal
		[]float64{4499.5, 4502, 4499, 4501}, // first close above DR high
	)

	c, ok := confs.For(session.RDR, session.Date("2026-08-17"))
	require.True(t, ok)
	assert.Equal(t, Bullish, c.Bias)
	assert.Equal(t, time.Date(2026, 8, 17, 10, 35, 0, 0, session.Eastern), c.Time)
}

func TestDetectBearishConfirmation(t *testing.T) {
	confs, _ := detect(t,
		[]float64{4492, 4493, 4488, 4489},
	)

	c, ok := confs.For(session.RDR, session.Date("2026-08-17"))
	require.True(t, ok)
	assert.Equal(t, Bearish, c.Bias)
	assert.Equal(t, time.Date(2026, 8, 17, 10, 30, 0, 0, session.Eastern), c.Time)
}

func TestCloseOnBoundaryDoesNotConfirm(t *testing.T) {
	// closes exactly at DR high and DR low are not breaks
	confs, _ := detect(t,
		[]float64{4499, 4501, 4489, 4500},
		[]float64{4500, 4501, 4489.5, 4490},
	)

	_, ok := confs.For(session.RDR, session.Date("2026-08-17"))
	assert.False(t, ok)
}

func TestEarlierBreakWins(t *testing.T) {
	confs, _ := detect(t,
		[]float64{4499, 4502, 4498, 4501}, // bullish at 10:30
		[]float64{4501, 4502, 4488, 4489}, // bearish at 10:35, too late
	)

	c, ok := confs.For(session.RDR, session.Date("2026-08-17"))
	require.True(t, ok)
	assert.Equal(t, Bullish, c.Bias)
}

func TestBreakAfterTradingWindowDoesNotConfirm(t *testing.T) {
	// The trading interval is end-exclusive; a break on the 16:00 bar is
	// outside it.
	bars := rdrFormation(17)
	bars = append(bars, bar(17, 16, 0, 4499, 4503, 4498, 4502))
	bounds := ComputeBoundaries(bars)
	confs := DetectConfirmations(bars, bounds)

	_, ok := confs.For(session.RDR, session.Date("2026-08-17"))
	assert.False(t, ok)
}

func TestAtMostOneConfirmationPerDay(t *testing.T) {
	confs, _ := detect(t,
		[]float64{4499, 4502, 4498, 4501},
		[]float64{4501, 4504, 4500, 4503},
		[]float64{4503, 4505, 4502, 4504},
	)

	c, ok := confs.For(session.RDR, session.Date("2026-08-17"))
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 17, 10, 30, 0, 0, session.Eastern), c.Time)
}

func TestBiasValid(t *testing.T) {
	assert.True(t, Bullish.Valid())
	assert.True(t, Bearish.Valid())
	assert.False(t, Bias("sideways").Valid())
	assert.False(t, Bias("").Valid())
}
