package drange

import (
	"math"
	"time"

	"github.com/qxcapital/drbot/internal/market"
	"github.com/qxcapital/drbot/internal/session"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DEFINING RANGE MODEL
// ═══════════════════════════════════════════════════════════════════════════════
//
// DR: wick high/low over a session's formation interval.
// IDR: candle-body high/low (max/min of open,close) over the same interval,
// so IDR always sits inside DR.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MinFormationBars is the minimum bar count a formation interval must
// contain for its boundaries to be defined.
const MinFormationBars = 5

// Boundaries are the measured range levels for one (session, date).
type Boundaries struct {
	DRHigh       float64
	DRLow        float64
	IDRHigh      float64
	IDRLow       float64
	FormationEnd time.Time // timestamp of the last formation bar
	StdDev       float64   // sample std dev of formation closes
	Bars         int
}

// IDRRange returns the inner range width in points.
func (b Boundaries) IDRRange() float64 { return b.IDRHigh - b.IDRLow }

// BoundarySet maps session -> formation date -> boundaries. Dates whose
// formation interval held fewer than MinFormationBars are absent.
type BoundarySet map[session.Name]map[session.Date]Boundaries

// For looks up boundaries for a session and date.
func (s BoundarySet) For(n session.Name, d session.Date) (Boundaries, bool) {
	b, ok := s[n][d]
	return b, ok
}

// ComputeBoundaries measures DR/IDR levels for every session and calendar
// date present in bars. Pure function of its input: repeated calls with the
// same series yield identical results.
func ComputeBoundaries(bars []market.Bar) BoundarySet {
	byDate := groupByDate(bars)

	out := make(BoundarySet, 3)
	for _, name := range session.Names() {
		perDate := make(map[session.Date]Boundaries)
		for date, dayBars := range byDate {
			var slice []market.Bar
			for _, b := range dayBars {
				if session.InFormation(name, b.Start) {
					slice = append(slice, b)
				}
			}
			if len(slice) < MinFormationBars {
				continue
			}
			perDate[date] = measure(slice)
		}
		out[name] = perDate
	}
	return out
}

func measure(slice []market.Bar) Boundaries {
	b := Boundaries{
		DRHigh:  math.Inf(-1),
		DRLow:   math.Inf(1),
		IDRHigh: math.Inf(-1),
		IDRLow:  math.Inf(1),
		Bars:    len(slice),
	}
	closes := make([]float64, 0, len(slice))
	for _, bar := range slice {
		b.DRHigh = math.Max(b.DRHigh, bar.High)
		b.DRLow = math.Min(b.DRLow, bar.Low)
		bodyHigh, bodyLow := bar.Body()
		b.IDRHigh = math.Max(b.IDRHigh, bodyHigh)
		b.IDRLow = math.Min(b.IDRLow, bodyLow)
		closes = append(closes, bar.Close)
	}
	b.FormationEnd = slice[len(slice)-1].Start
	b.StdDev = sampleStdDev(closes)
	return b
}

// sampleStdDev is the n-1 denominator standard deviation; it feeds the
// volatility-scaled profit target.
func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func groupByDate(bars []market.Bar) map[session.Date][]market.Bar {
	byDate := make(map[session.Date][]market.Bar)
	for _, b := range bars {
		d := session.DateOf(b.Start)
		byDate[d] = append(byDate[d], b)
	}
	return byDate
}
