package drange

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qxcapital/drbot/internal/market"
	"github.com/qxcapital/drbot/internal/session"
)

func bar(day, hour, min int, o, h, l, c float64) market.Bar {
	return market.Bar{
		Start: time.Date(2026, 8, day, hour, min, 0, 0, session.Eastern),
		Open:  o, High: h, Low: l, Close: c,
	}
}

// rdrFormation is a six-bar RDR formation window with known extremes:
// DR 4500/4490, IDR 4498/4492, closes averaging 4495.
func rdrFormation(day int) []market.Bar {
	return []market.Bar{
		bar(day, 9, 30, 4494, 4500, 4493, 4496),
		bar(day, 9, 35, 4496, 4497, 4490, 4492),
		bar(day, 9, 40, 4493, 4499, 4492, 4498),
		bar(day, 9, 45, 4498, 4498.5, 4494, 4495),
		bar(day, 9, 50, 4495, 4496, 4492.5, 4493),
		bar(day, 9, 55, 4493, 4497, 4492.2, 4496),
	}
}

func TestComputeBoundaries(t *testing.T) {
	set := ComputeBoundaries(rdrFormation(17))

	b, ok := set.For(session.RDR, session.Date("2026-08-17"))
	require.True(t, ok)

	assert.Equal(t, 4500.0, b.DRHigh)
	assert.Equal(t, 4490.0, b.DRLow)
	assert.Equal(t, 4498.0, b.IDRHigh)
	assert.Equal(t, 4492.0, b.IDRLow)
	assert.Equal(t, 6.0, b.IDRRange())
	assert.Equal(t, 6, b.Bars)
	assert.Equal(t, time.Date(2026, 8, 17, 9, 55, 0, 0, session.Eastern), b.FormationEnd)

	// closes 4496,4492,4498,4495,4493,4496: sample variance 24/5
	assert.InDelta(t, math.Sqrt(4.8), b.StdDev, 1e-12)
}

func TestBoundariesContainInnerRange(t *testing.T) {
	set := ComputeBoundaries(rdrFormation(17))
	b, ok := set.For(session.RDR, session.Date("2026-08-17"))
	require.True(t, ok)

	assert.LessOrEqual(t, b.IDRHigh, b.DRHigh)
	assert.GreaterOrEqual(t, b.IDRLow, b.DRLow)
}

func TestBoundariesUndefinedBelowMinimumBars(t *testing.T) {
	short := rdrFormation(17)[:MinFormationBars-1]
	set := ComputeBoundaries(short)

	_, ok := set.For(session.RDR, session.Date("2026-08-17"))
	assert.False(t, ok)
}

func TestComputeBoundariesIgnoresBarsOutsideFormation(t *testing.T) {
	bars := append(rdrFormation(17),
		// big trading-window bar must not move the range
		bar(17, 10, 30, 4501, 4520, 4480, 4510),
	)
	set := ComputeBoundaries(bars)

	b, ok := set.For(session.RDR, session.Date("2026-08-17"))
	require.True(t, ok)
	assert.Equal(t, 4500.0, b.DRHigh)
	assert.Equal(t, 4490.0, b.DRLow)
}

func TestComputeBoundariesDeterministic(t *testing.T) {
	bars := rdrFormation(17)
	first := ComputeBoundaries(bars)
	second := ComputeBoundaries(bars)
	assert.Equal(t, first, second)
}

func TestComputeBoundariesMultipleDays(t *testing.T) {
	bars := append(rdrFormation(17), rdrFormation(18)...)
	set := ComputeBoundaries(bars)

	_, ok := set.For(session.RDR, session.Date("2026-08-17"))
	assert.True(t, ok)
	_, ok = set.For(session.RDR, session.Date("2026-08-18"))
	assert.True(t, ok)
}

func TestSampleStdDev(t *testing.T) {
	assert.Equal(t, 0.0, sampleStdDev([]float64{4500}))
	assert.InDelta(t, math.Sqrt(2.5), sampleStdDev([]float64{1, 2, 3, 4, 5}), 1e-12)
}
