package market

import (
	"context"
	"time"
)

// Bar is a single OHLCV candle. Start is the bar open time in the
// exchange's civil time zone. Bars are immutable once ingested.
type Bar struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Body returns the candle body extremes, max and min of open/close.
func (b Bar) Body() (high, low float64) {
	if b.Open > b.Close {
		return b.Open, b.Close
	}
	return b.Close, b.Open
}

// BarSource supplies the most recent closed bars, time-ascending.
// An empty slice on a transient failure is valid; callers retry next tick.
type BarSource interface {
	FetchRecentBars(ctx context.Context) ([]Bar, error)
}

// LastClose returns the close of the most recent bar, or false when empty.
func LastClose(bars []Bar) (float64, bool) {
	if len(bars) == 0 {
		return 0, false
	}
	return bars[len(bars)-1].Close, true
}

// Clean drops bars whose timestamp does not strictly increase, keeping the
// first occurrence. Sources occasionally repeat the trailing bar across
// polls; the signal math assumes a strictly ordered series.
func Clean(bars []Bar) []Bar {
	if len(bars) < 2 {
		return bars
	}
	out := bars[:1]
	for _, b := range bars[1:] {
		if b.Start.After(out[len(out)-1].Start) {
			out = append(out, b)
		}
	}
	return out
}

// Tail returns at most the last n bars.
func Tail(bars []Bar, n int) []Bar {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
