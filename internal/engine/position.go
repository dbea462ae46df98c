package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/qxcapital/drbot/internal/drange"
	"github.com/qxcapital/drbot/internal/session"
)

// Position is one open trade being managed tick-by-tick. Created on order
// acceptance, mutated only by the engine loop, removed on full closure.
type Position struct {
	Session   session.Name
	Bias      drange.Bias
	Entry     float64
	Stop      float64
	Target    float64
	Contracts int
	Remaining int
	OpenTime  time.Time
	OrderID   string

	PartialTaken   bool
	TrailingActive bool
	TrailingStop   float64
	Extreme        float64 // highest price seen for longs, lowest for shorts

	Realized decimal.Decimal // banked P&L, for the optional profit cap
}

func newPosition(sess session.Name, bias drange.Bias, entry, stop, target float64, contracts int, openTime time.Time, orderID string) *Position {
	return &Position{
		Session:   sess,
		Bias:      bias,
		Entry:     entry,
		Stop:      stop,
		Target:    target,
		Contracts: contracts,
		Remaining: contracts,
		OpenTime:  openTime,
		OrderID:   orderID,
		Extreme:   entry,
		Realized:  decimal.Zero,
	}
}

func (p *Position) long() bool { return p.Bias == drange.Bullish }

// observe ratchets the favorable extreme with the latest price.
func (p *Position) observe(price float64) {
	if p.long() {
		if price > p.Extreme {
			p.Extreme = price
		}
	} else if price < p.Extreme {
		p.Extreme = price
	}
}

// pnlPoints is the signed per-contract move from entry to price.
func (p *Position) pnlPoints(price float64) float64 {
	if p.long() {
		return price - p.Entry
	}
	return p.Entry - price
}

// pnlDollars realizes the move on n contracts at the given point value.
func (p *Position) pnlDollars(price float64, n int, pointValue float64) decimal.Decimal {
	return decimal.NewFromFloat(p.pnlPoints(price) * float64(n) * pointValue)
}

func (p *Position) stopHit(price float64) bool {
	if p.long() {
		return price <= p.Stop
	}
	return price >= p.Stop
}

func (p *Position) targetHit(price float64) bool {
	if p.long() {
		return price >= p.Target
	}
	return price <= p.Target
}

// trailFrom places the trailing stop a fixed distance behind the extreme.
func (p *Position) trailFrom(points float64) float64 {
	if p.long() {
		return p.Extreme - points
	}
	return p.Extreme + points
}

// ratchetTrail moves the trailing stop in the favorable direction only.
func (p *Position) ratchetTrail(points float64) bool {
	next := p.trailFrom(points)
	if p.long() {
		if next > p.TrailingStop {
			p.TrailingStop = next
			return true
		}
		return false
	}
	if next < p.TrailingStop {
		p.TrailingStop = next
		return true
	}
	return false
}

func (p *Position) trailingHit(price float64) bool {
	if !p.TrailingActive {
		return false
	}
	if p.long() {
		return price <= p.TrailingStop
	}
	return price >= p.TrailingStop
}
