package drange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBullishLevels(t *testing.T) {
	b := Boundaries{IDRHigh: 4498, IDRLow: 4492, StdDev: 2}

	entry, stop, target := Levels(b, Bullish)
	assert.InDelta(t, 4496.8, entry, 1e-9) // 20% retrace into a 6 point range
	assert.InDelta(t, 4493.0, stop, 1e-9)  // midpoint 4495 less 2
	assert.InDelta(t, 4500.0, target, 1e-9)
}

func TestBearishLevels(t *testing.T) {
	b := Boundaries{IDRHigh: 4498, IDRLow: 4492, StdDev: 2}

	entry, stop, target := Levels(b, Bearish)
	assert.InDelta(t, 4493.2, entry, 1e-9)
	assert.InDelta(t, 4497.0, stop, 1e-9)
	assert.InDelta(t, 4490.0, target, 1e-9)
}

func TestLevelsMirror(t *testing.T) {
	b := Boundaries{IDRHigh: 4510, IDRLow: 4500, StdDev: 3.5}

	be, bs, bt := Levels(b, Bullish)
	se, ss, st := Levels(b, Bearish)

	// the bearish model is the bullish model reflected about the midpoint
	mid := 4505.0
	assert.InDelta(t, mid-(be-mid), se, 1e-9)
	assert.InDelta(t, mid-(bs-mid), ss, 1e-9)
	assert.InDelta(t, mid-(bt-mid), st, 1e-9)
}

func TestEngineRecomputesAfterSetBars(t *testing.T) {
	e := NewEngine()
	e.SetBars(rdrFormation(17))

	_, ok := e.BoundariesFor("rdr", "2026-08-17")
	assert.True(t, ok)

	e.SetBars(nil)
	_, ok = e.BoundariesFor("rdr", "2026-08-17")
	assert.False(t, ok)
}
