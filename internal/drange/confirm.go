package drange

import (
	"time"

	"github.com/qxcapital/drbot/internal/market"
	"github.com/qxcapital/drbot/internal/session"
)

// Bias is the directional read of a range break.
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
)

// Valid rejects anything that is not one of the two known biases before it
// can reach order placement.
func (b Bias) Valid() bool { return b == Bullish || b == Bearish }

// Confirmation is the first post-formation close beyond a DR boundary
// within the session's trading interval. At most one exists per
// (session, date) and it never changes retroactively.
type Confirmation struct {
	Session session.Name
	Date    session.Date
	Time    time.Time
	Bias    Bias
}

// ConfirmationSet maps session -> formation date -> confirmation.
type ConfirmationSet map[session.Name]map[session.Date]Confirmation

// For looks up the confirmation for a session and date.
func (s ConfirmationSet) For(n session.Name, d session.Date) (Confirmation, bool) {
	c, ok := s[n][d]
	return c, ok
}

// DetectConfirmations scans the trading interval of every (session, date)
// with defined boundaries for the first close above DR high (bullish) or
// below DR low (bearish). Whichever side breaks first chronologically sets
// the bias; a dead heat resolves bullish.
func DetectConfirmations(bars []market.Bar, bounds BoundarySet) ConfirmationSet {
	out := make(ConfirmationSet, 3)
	for _, name := range session.Names() {
		perDate := make(map[session.Date]Confirmation)
		for date, b := range bounds[name] {
			start, end := session.TradingBounds(name, date)

			var bullAt, bearAt time.Time
			for _, bar := range bars {
				t := bar.Start
				if t.Before(start) || !t.Before(end) || !t.After(b.FormationEnd) {
					continue
				}
				if bullAt.IsZero() && bar.Close > b.DRHigh {
					bullAt = t
				}
				if bearAt.IsZero() && bar.Close < b.DRLow {
					bearAt = t
				}
				if !bullAt.IsZero() && !bearAt.IsZero() {
					break
				}
			}

			conf := Confirmation{Session: name, Date: date}
			switch {
			case !bullAt.IsZero() && (bearAt.IsZero() || !bearAt.Before(bullAt)):
				conf.Time, conf.Bias = bullAt, Bullish
			case !bearAt.IsZero():
				conf.Time, conf.Bias = bearAt, Bearish
			default:
				continue
			}
			perDate[date] = conf
		}
		out[name] = perDate
	}
	return out
}
