package session

import (
	"fmt"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SESSION SCHEDULE - Three daily range/trading window pairs (exchange time)
// ═══════════════════════════════════════════════════════════════════════════════
//
// Each session has a range-formation interval, during which the defining
// range is measured, and a later trading interval, during which breakout
// confirmations are acted on. ADR's trading interval crosses midnight.
//
//	ODR  formation 03:00-03:55  trading 04:00-08:00
//	RDR  formation 09:30-10:25  trading 10:30-16:00
//	ADR  formation 19:30-20:25  trading 20:30-01:00 (+1d)
//
// ═══════════════════════════════════════════════════════════════════════════════

// Name identifies one of the three daily sessions.
type Name string

const (
	ODR Name = "odr"
	RDR Name = "rdr"
	ADR Name = "adr"
)

// Names lists all sessions in chronological order of their formation window.
func Names() []Name { return []Name{ODR, RDR, ADR} }

// Eastern is the exchange civil calendar used for all session arithmetic.
var Eastern = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("session: load location %s: %v", name, err))
	}
	return loc
}

// TimeOfDay is a civil wall-clock time within the exchange calendar.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// Window is a session's formation and trading intervals. Formation never
// crosses midnight; trading does for ADR.
type Window struct {
	FormationStart TimeOfDay
	FormationEnd   TimeOfDay
	TradingStart   TimeOfDay
	TradingEnd     TimeOfDay
	Overnight      bool // trading interval ends on the next calendar day
}

var schedule = map[Name]Window{
	ODR: {
		FormationStart: TimeOfDay{3, 0},
		FormationEnd:   TimeOfDay{3, 55},
		TradingStart:   TimeOfDay{4, 0},
		TradingEnd:     TimeOfDay{8, 0},
	},
	RDR: {
		FormationStart: TimeOfDay{9, 30},
		FormationEnd:   TimeOfDay{10, 25},
		TradingStart:   TimeOfDay{10, 30},
		TradingEnd:     TimeOfDay{16, 0},
	},
	ADR: {
		FormationStart: TimeOfDay{19, 30},
		FormationEnd:   TimeOfDay{20, 25},
		TradingStart:   TimeOfDay{20, 30},
		TradingEnd:     TimeOfDay{1, 0},
		Overnight:      true,
	},
}

// Lookup returns the window for a session name.
func Lookup(n Name) Window { return schedule[n] }

// Active returns the session whose trading interval contains t, if any.
func Active(t time.Time) (Name, bool) {
	m := minutesOfDay(t)
	for _, n := range Names() {
		w := schedule[n]
		start, end := w.TradingStart.minutes(), w.TradingEnd.minutes()
		if w.Overnight {
			if m >= start || m < end {
				return n, true
			}
		} else if m >= start && m < end {
			return n, true
		}
	}
	return "", false
}

// InFormation reports whether t's time of day falls within the session's
// formation interval, inclusive on both ends.
func InFormation(n Name, t time.Time) bool {
	w := schedule[n]
	m := minutesOfDay(t)
	return m >= w.FormationStart.minutes() && m <= w.FormationEnd.minutes()
}

// AfterFormation reports whether t's time of day is at or past the
// session's formation end. For ADR this includes the after-midnight tail.
func AfterFormation(n Name, t time.Time) bool {
	w := schedule[n]
	m := minutesOfDay(t)
	if w.Overnight && m < w.TradingEnd.minutes() {
		return true
	}
	return m > w.FormationEnd.minutes()
}

// Date is a civil calendar date in the exchange time zone, "2006-01-02".
type Date string

// DateOf returns the civil date of t in exchange time.
func DateOf(t time.Time) Date {
	return Date(t.In(Eastern).Format("2006-01-02"))
}

// AddDays shifts a date by whole calendar days.
func (d Date) AddDays(n int) Date {
	t, err := time.ParseInLocation("2006-01-02", string(d), Eastern)
	if err != nil {
		return d
	}
	return DateOf(t.AddDate(0, 0, n))
}

// At anchors a time of day on this date in exchange time.
func (d Date) At(tod TimeOfDay) time.Time {
	t, _ := time.ParseInLocation("2006-01-02", string(d), Eastern)
	return time.Date(t.Year(), t.Month(), t.Day(), tod.Hour, tod.Minute, 0, 0, Eastern)
}

// FormationDate pins "today" for caching and guard keys to the session's
// range-formation calendar day. For ADR a timestamp in the after-midnight
// trading tail belongs to the previous day's range.
func FormationDate(n Name, t time.Time) Date {
	t = t.In(Eastern)
	w := schedule[n]
	if w.Overnight && minutesOfDay(t) < w.TradingEnd.minutes() {
		return DateOf(t.AddDate(0, 0, -1))
	}
	return DateOf(t)
}

// TradingBounds returns the absolute trading interval for a session on a
// formation date. The ADR interval ends on the following calendar day.
func TradingBounds(n Name, d Date) (start, end time.Time) {
	w := schedule[n]
	start = d.At(w.TradingStart)
	if w.Overnight {
		end = d.AddDays(1).At(w.TradingEnd)
	} else {
		end = d.At(w.TradingEnd)
	}
	return start, end
}

// FormationBounds returns the absolute formation interval for a session on
// a formation date.
func FormationBounds(n Name, d Date) (start, end time.Time) {
	w := schedule[n]
	return d.At(w.FormationStart), d.At(w.FormationEnd)
}

func minutesOfDay(t time.Time) int {
	t = t.In(Eastern)
	return t.Hour()*60 + t.Minute()
}
