package drange

import (
	"time"

	"github.com/qxcapital/drbot/internal/market"
	"github.com/qxcapital/drbot/internal/session"
)

// Engine wraps boundary computation and confirmation detection over a bar
// series, recomputing lazily after the series changes. It does not detect
// staleness itself; callers hand it fresh bars via SetBars.
type Engine struct {
	bars   []market.Bar
	bounds BoundarySet
	confs  ConfirmationSet
	dirty  bool
}

func NewEngine() *Engine {
	return &Engine{dirty: true}
}

// SetBars replaces the working series and invalidates cached results.
func (e *Engine) SetBars(bars []market.Bar) {
	e.bars = bars
	e.dirty = true
}

// Invalidate forces recomputation on the next access.
func (e *Engine) Invalidate() { e.dirty = true }

func (e *Engine) ensure() {
	if !e.dirty {
		return
	}
	e.bounds = ComputeBoundaries(e.bars)
	e.confs = DetectConfirmations(e.bars, e.bounds)
	e.dirty = false
}

// Boundaries returns the full boundary set for the current series.
func (e *Engine) Boundaries() BoundarySet {
	e.ensure()
	return e.bounds
}

// BoundariesFor returns the boundaries for one (session, date).
func (e *Engine) BoundariesFor(n session.Name, d session.Date) (Boundaries, bool) {
	e.ensure()
	return e.bounds.For(n, d)
}

// ConfirmationFor returns the confirmation for one (session, date).
func (e *Engine) ConfirmationFor(n session.Name, d session.Date) (Confirmation, bool) {
	e.ensure()
	return e.confs.For(n, d)
}

// SignalAt returns the confirmation whose timestamp matches t, if any.
func (e *Engine) SignalAt(t time.Time) (Confirmation, bool) {
	e.ensure()
	for _, perDate := range e.confs {
		for _, c := range perDate {
			if c.Time.Equal(t) {
				return c, true
			}
		}
	}
	return Confirmation{}, false
}
