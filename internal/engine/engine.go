package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/qxcapital/drbot/internal/broker"
	"github.com/qxcapital/drbot/internal/drange"
	"github.com/qxcapital/drbot/internal/market"
	"github.com/qxcapital/drbot/internal/metrics"
	"github.com/qxcapital/drbot/internal/risk"
	"github.com/qxcapital/drbot/internal/session"
	"github.com/qxcapital/drbot/internal/storage"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADING ENGINE - Per-session breakout state machine on a polling loop
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every poll the engine fetches bars, recomputes range boundaries and
// confirmations, advances each active session's state machine on new bar
// closes, and manages open positions on every tick. Errors are logged and
// retried next tick; nothing inside the loop is fatal.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Phase is a session's position in the daily trade lifecycle.
type Phase int

const (
	Idle Phase = iota
	BoundariesReady
	AwaitingConfirmation
	Confirmed
	Entered
	Closed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case BoundariesReady:
		return "boundaries_ready"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Confirmed:
		return "confirmed"
	case Entered:
		return "entered"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Config holds the loop timing and trade management knobs.
type Config struct {
	PollInterval time.Duration
	Freshness    time.Duration // max confirmation age at decision time
	TimeLimit    time.Duration // max position lifetime
	QuoteMaxAge  time.Duration // max feed quote age before falling back to bars

	TrailPoints  float64 // trailing stop distance behind the extreme
	PartialRatio float64 // fraction closed when the target prints
	DRTolerance  float64 // points within which a range counts as already traded

	MinBars     int // below this the engine stands down
	RollingBars int // bars kept in the working series
}

// DefaultConfig returns the live-engine defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		Freshness:    10 * time.Minute,
		TimeLimit:    time.Hour,
		QuoteMaxAge:  time.Minute,
		TrailPoints:  5.0,
		PartialRatio: 0.75,
		DRTolerance:  0.5,
		MinBars:      10,
		RollingBars:  500,
	}
}

// PriceSource supplies the last traded price, typically a websocket feed.
type PriceSource interface {
	LastPrice() (price float64, at time.Time, ok bool)
}

// Notifier pushes trade lifecycle events to an external channel.
type Notifier interface {
	NotifyTrade(action, sess, bias string, price float64, size int, pnl decimal.Decimal)
}

// pendingEntry is a confirmed signal waiting for its retrace entry.
type pendingEntry struct {
	conf   drange.Confirmation
	bounds drange.Boundaries
	entry  float64
	stop   float64
	target float64
}

// sessionState is one session's day-scoped machine state.
type sessionState struct {
	phase          Phase
	lastBar        time.Time // last bar close acted on, for idempotency
	lastConfTraded time.Time // confirmation timestamp already consumed
	pending        *pendingEntry
}

// drKey fingerprints a traded range so a re-detected identical breakout on
// the same session and date is not traded twice.
type drKey struct {
	high, low float64
	bias      drange.Bias
}

// Engine drives the trade lifecycle. Construct with New, wire optional
// collaborators with the setters, then call Run.
type Engine struct {
	cfg     Config
	source  market.BarSource
	broker  broker.Broker
	signals *drange.Engine
	risk    *risk.Manager

	journal  *storage.Journal
	notifier Notifier
	quotes   PriceSource
	paper    bool

	now func() time.Time

	mu           sync.Mutex
	bars         []market.Bar
	states       map[session.Name]*sessionState
	lastDRTraded map[string]drKey
	boundsCache  map[string]drange.Boundaries
	open         []*Position
	today        session.Date

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates an engine over the given market data, broker and risk manager.
func New(cfg Config, source market.BarSource, brk broker.Broker, rm *risk.Manager) *Engine {
	return &Engine{
		cfg:          cfg,
		source:       source,
		broker:       brk,
		signals:      drange.NewEngine(),
		risk:         rm,
		now:          time.Now,
		states:       make(map[session.Name]*sessionState),
		lastDRTraded: make(map[string]drKey),
		boundsCache:  make(map[string]drange.Boundaries),
		stopCh:       make(chan struct{}),
	}
}

// SetJournal enables trade persistence.
func (e *Engine) SetJournal(j *storage.Journal) { e.journal = j }

// SetNotifier enables trade notifications.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// SetQuotes enables live-quote exit checks between bar closes.
func (e *Engine) SetQuotes(p PriceSource) { e.quotes = p }

// SetPaperMode tags journal entries as paper trades.
func (e *Engine) SetPaperMode(on bool) { e.paper = on }

// Run polls until the context is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	log.Info().
		Dur("poll", e.cfg.PollInterval).
		Dur("freshness", e.cfg.Freshness).
		Dur("time_limit", e.cfg.TimeLimit).
		Msg("🚀 Trading engine started")

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		e.step(ctx)
		select {
		case <-ctx.Done():
			log.Info().Msg("Trading engine stopped: context cancelled")
			return
		case <-e.stopCh:
			log.Info().Msg("Trading engine stopped")
			return
		case <-ticker.C:
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// step is one full poll: rollover, fetch, session evaluation, exits.
func (e *Engine) step(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	metrics.LoopIterations.Inc()
	now := e.now()

	e.maybeRollover(now)

	bars, err := e.source.FetchRecentBars(ctx)
	if err != nil {
		metrics.FetchErrors.Inc()
		log.Error().Err(err).Msg("Bar fetch failed, retrying next tick")
	} else if len(bars) > 0 {
		e.bars = market.Tail(market.Clean(bars), e.cfg.RollingBars)
		e.signals.SetBars(e.bars)
	}

	if len(e.bars) < e.cfg.MinBars {
		log.Debug().Int("bars", len(e.bars)).Int("min", e.cfg.MinBars).Msg("Not enough bars yet")
	} else if sess, ok := session.Active(now); ok {
		e.evaluateSession(ctx, sess, now)
	} else {
		log.Debug().Time("now", now).Msg("No active trading session")
	}

	e.checkOpenPositions(ctx, now)
}

// maybeRollover resets day-scoped state on a civil-date change. The reset is
// held back while the previous day's ADR trading tail is still running.
func (e *Engine) maybeRollover(now time.Time) {
	d := session.DateOf(now)
	if e.today == "" {
		e.today = d
		return
	}
	if d == e.today {
		return
	}
	if session.FormationDate(session.ADR, now) != d {
		return
	}

	for _, pos := range append([]*Position(nil), e.open...) {
		price, ok := e.currentPrice(now)
		if !ok {
			price = pos.Entry
		}
		log.Warn().
			Str("session", string(pos.Session)).
			Int("remaining", pos.Remaining).
			Msg("Position still open at day rollover, closing")
		e.closeTranche(context.Background(), pos, pos.Remaining, price, "ROLLOVER", now)
	}

	e.today = d
	e.states = make(map[session.Name]*sessionState)
	e.lastDRTraded = make(map[string]drKey)
	e.boundsCache = make(map[string]drange.Boundaries)
	e.risk.ResetDaily()
	metrics.DailyPnL.Set(0)
	log.Info().Str("date", string(d)).Msg("📅 New trading day")
}

func (e *Engine) state(n session.Name) *sessionState {
	st, ok := e.states[n]
	if !ok {
		st = &sessionState{}
		e.states[n] = st
	}
	return st
}

func guardKey(n session.Name, d session.Date) string {
	return string(n) + "_" + string(d)
}

// boundaries returns the session's range for the date, caching it once the
// formation window has closed so later bars cannot shift a traded range.
func (e *Engine) boundaries(n session.Name, d session.Date, now time.Time) (drange.Boundaries, bool) {
	key := guardKey(n, d)
	if b, ok := e.boundsCache[key]; ok {
		return b, true
	}
	b, ok := e.signals.BoundariesFor(n, d)
	if !ok {
		return drange.Boundaries{}, false
	}
	if session.AfterFormation(n, now) {
		e.boundsCache[key] = b
		log.Info().
			Str("session", string(n)).
			Str("date", string(d)).
			Float64("dr_high", b.DRHigh).
			Float64("dr_low", b.DRLow).
			Float64("idr_high", b.IDRHigh).
			Float64("idr_low", b.IDRLow).
			Float64("stddev", b.StdDev).
			Msg("🎯 Range boundaries locked")
	}
	return b, true
}

// evaluateSession advances one session's state machine. Signal decisions are
// gated on a new bar close; within one bar they run at most once.
func (e *Engine) evaluateSession(ctx context.Context, sess session.Name, now time.Time) {
	if len(e.bars) == 0 {
		return
	}
	st := e.state(sess)

	latest := e.bars[len(e.bars)-1].Start
	if !latest.After(st.lastBar) {
		return
	}
	st.lastBar = latest

	date := session.FormationDate(sess, now)
	log.Debug().
		Str("session", string(sess)).
		Str("date", string(date)).
		Str("phase", st.phase.String()).
		Time("bar", latest).
		Msg("Session tick")

	if st.phase == Closed || st.phase == Entered {
		return
	}

	b, ok := e.boundaries(sess, date, now)
	if !ok {
		log.Debug().Str("session", string(sess)).Msg("Range boundaries undefined")
		st.phase = Idle
		return
	}
	if st.phase == Idle {
		st.phase = BoundariesReady
	}

	if !session.AfterFormation(sess, now) {
		return
	}
	if st.phase == BoundariesReady {
		st.phase = AwaitingConfirmation
		log.Info().Str("session", string(sess)).Msg("👀 Watching for breakout confirmation")
	}

	price, ok := market.LastClose(e.bars)
	if !ok {
		return
	}

	if st.phase == AwaitingConfirmation {
		e.checkConfirmation(sess, st, date, b, now)
	}
	if st.phase == Confirmed {
		e.tryEnter(ctx, sess, st, date, price, now)
	}
}

// checkConfirmation promotes a fresh, untraded breakout confirmation into a
// pending entry.
func (e *Engine) checkConfirmation(sess session.Name, st *sessionState, date session.Date, b drange.Boundaries, now time.Time) {
	conf, ok := e.signals.ConfirmationFor(sess, date)
	if !ok {
		return
	}
	if !conf.Bias.Valid() || conf.Time.IsZero() {
		log.Error().Str("session", string(sess)).Msg("Discarding malformed confirmation")
		return
	}
	if age := now.Sub(conf.Time); age > e.cfg.Freshness {
		log.Debug().
			Str("session", string(sess)).
			Dur("age", age).
			Msg("Confirmation too old to act on")
		return
	}
	if conf.Time.Equal(st.lastConfTraded) {
		log.Debug().Str("session", string(sess)).Msg("Confirmation already traded")
		return
	}
	if last, traded := e.lastDRTraded[guardKey(sess, date)]; traded && e.sameRange(last, b, conf.Bias) {
		log.Debug().Str("session", string(sess)).Msg("Range already traded today")
		return
	}

	entry, stop, target := drange.Levels(b, conf.Bias)
	st.pending = &pendingEntry{conf: conf, bounds: b, entry: entry, stop: stop, target: target}
	st.phase = Confirmed

	log.Info().
		Str("session", string(sess)).
		Str("bias", string(conf.Bias)).
		Time("confirmed_at", conf.Time).
		Float64("entry", entry).
		Float64("stop", stop).
		Float64("target", target).
		Msg("✅ Breakout confirmed")
}

func (e *Engine) sameRange(last drKey, b drange.Boundaries, bias drange.Bias) bool {
	return last.bias == bias &&
		absDiff(last.high, b.DRHigh) <= e.cfg.DRTolerance &&
		absDiff(last.low, b.DRLow) <= e.cfg.DRTolerance
}

// tryEnter waits for the retrace into the entry level and submits the order.
// A move already past the target forfeits the signal; both a missed move and
// a rejected order consume a session slot.
func (e *Engine) tryEnter(ctx context.Context, sess session.Name, st *sessionState, date session.Date, price float64, now time.Time) {
	p := st.pending
	if p == nil {
		st.phase = AwaitingConfirmation
		return
	}
	if e.hasOpenPosition(sess) {
		return
	}
	if !e.risk.CanTrade(sess) {
		st.phase = Closed
		st.pending = nil
		return
	}

	long := p.conf.Bias == drange.Bullish
	missed := (long && price >= p.target) || (!long && price <= p.target)
	if missed {
		log.Warn().
			Str("session", string(sess)).
			Float64("price", price).
			Float64("target", p.target).
			Msg("🏃 Move missed, price ran past target before entry")
		e.markTraded(sess, st, date, p)
		e.journalEntry(*p, sess, 0, "", "MISSED", now)
		e.notify("MISSED", sess, p.conf.Bias, price, 0, decimal.Zero)
		st.pending = nil
		st.phase = e.afterSlot(sess)
		return
	}

	waiting := (long && price > p.entry) || (!long && price < p.entry)
	if waiting {
		log.Debug().
			Str("session", string(sess)).
			Float64("price", price).
			Float64("entry", p.entry).
			Msg("Waiting for retrace to entry")
		return
	}

	size := e.risk.PositionSize(p.entry, p.stop)
	side := broker.Buy
	if !long {
		side = broker.Sell
	}

	orderID, err := e.broker.SubmitOrder(ctx, side, size)
	e.markTraded(sess, st, date, p)
	if err != nil {
		metrics.OrdersFailed.Inc()
		log.Error().Err(err).
			Str("session", string(sess)).
			Int("size", size).
			Msg("❌ Order submission failed")
		e.journalEntry(*p, sess, size, "", "FAILED", now)
		e.notify("ORDER FAILED", sess, p.conf.Bias, p.entry, size, decimal.Zero)
		st.pending = nil
		st.phase = e.afterSlot(sess)
		return
	}

	metrics.OrdersAccepted.Inc()
	pos := newPosition(sess, p.conf.Bias, p.entry, p.stop, p.target, size, now, orderID)
	e.open = append(e.open, pos)
	metrics.OpenPositions.Set(float64(len(e.open)))

	outcome := "OPEN"
	if e.paper {
		outcome = "PAPER"
	}
	e.journalEntry(*p, sess, size, orderID, outcome, now)
	e.notify("ENTER", sess, p.conf.Bias, p.entry, size, decimal.Zero)
	log.Info().
		Str("session", string(sess)).
		Str("bias", string(p.conf.Bias)).
		Str("order_id", orderID).
		Int("contracts", size).
		Float64("entry", p.entry).
		Float64("stop", p.stop).
		Float64("target", p.target).
		Msg("📈 Position opened")

	st.pending = nil
	st.phase = Entered
}

// markTraded records every guard that prevents re-trading this signal: the
// confirmation timestamp, the range fingerprint and the session slot.
func (e *Engine) markTraded(sess session.Name, st *sessionState, date session.Date, p *pendingEntry) {
	st.lastConfTraded = p.conf.Time
	e.lastDRTraded[guardKey(sess, date)] = drKey{high: p.bounds.DRHigh, low: p.bounds.DRLow, bias: p.conf.Bias}
	used := e.risk.ConsumeSlot(sess)
	log.Debug().Str("session", string(sess)).Int("slot", used).Msg("Session slot consumed")
}

// afterSlot decides where a session lands after consuming a slot without an
// open position: back to watching if slots remain, else done for the day.
func (e *Engine) afterSlot(sess session.Name) Phase {
	if e.risk.CanTrade(sess) {
		return AwaitingConfirmation
	}
	return Closed
}

func (e *Engine) hasOpenPosition(sess session.Name) bool {
	for _, pos := range e.open {
		if pos.Session == sess {
			return true
		}
	}
	return false
}

// currentPrice prefers a fresh live quote and falls back to the last bar
// close.
func (e *Engine) currentPrice(now time.Time) (float64, bool) {
	if e.quotes != nil {
		if price, at, ok := e.quotes.LastPrice(); ok && now.Sub(at) <= e.cfg.QuoteMaxAge {
			return price, true
		}
	}
	return market.LastClose(e.bars)
}

// checkOpenPositions runs exit management on every tick, not just bar closes.
func (e *Engine) checkOpenPositions(ctx context.Context, now time.Time) {
	if len(e.open) == 0 {
		return
	}
	price, ok := e.currentPrice(now)
	if !ok {
		return
	}
	for _, pos := range append([]*Position(nil), e.open...) {
		e.managePosition(ctx, pos, price, now)
	}
}

// managePosition applies the exit ladder: time limit, hard stop, partial
// take with trailing activation, trailing ratchet and trailing stop-out.
func (e *Engine) managePosition(ctx context.Context, pos *Position, price float64, now time.Time) {
	if now.Sub(pos.OpenTime) >= e.cfg.TimeLimit {
		log.Info().
			Str("session", string(pos.Session)).
			Dur("held", now.Sub(pos.OpenTime)).
			Msg("⏰ Time limit reached, closing position")
		e.closeTranche(ctx, pos, pos.Remaining, price, "TIME_LIMIT", now)
		return
	}

	pos.observe(price)

	if pos.stopHit(price) {
		log.Info().
			Str("session", string(pos.Session)).
			Float64("price", price).
			Float64("stop", pos.Stop).
			Msg("🛑 Stop hit")
		e.closeTranche(ctx, pos, pos.Remaining, price, "STOP", now)
		return
	}

	if !pos.PartialTaken && pos.targetHit(price) {
		partial := int(float64(pos.Contracts) * e.cfg.PartialRatio)
		if partial > 0 {
			log.Info().
				Str("session", string(pos.Session)).
				Float64("price", price).
				Int("closing", partial).
				Msg("💰 Target hit, taking partial profit")
			e.closeTranche(ctx, pos, partial, price, "TARGET_PARTIAL", now)
			if pos.Remaining > 0 {
				pos.PartialTaken = true
				pos.TrailingActive = true
				pos.TrailingStop = pos.trailFrom(e.cfg.TrailPoints)
				log.Info().
					Str("session", string(pos.Session)).
					Float64("trailing_stop", pos.TrailingStop).
					Msg("🪜 Trailing stop armed")
			}
			return
		}
	}

	if pos.TrailingActive {
		if pos.ratchetTrail(e.cfg.TrailPoints) {
			log.Debug().
				Str("session", string(pos.Session)).
				Float64("trailing_stop", pos.TrailingStop).
				Msg("Trailing stop ratcheted")
		}
		if pos.trailingHit(price) {
			log.Info().
				Str("session", string(pos.Session)).
				Float64("price", price).
				Float64("trailing_stop", pos.TrailingStop).
				Msg("🪜 Trailing stop hit")
			e.closeTranche(ctx, pos, pos.Remaining, price, "TRAILING", now)
		}
	}
}

// closeTranche realizes n contracts at price, submits the closing order,
// books the P&L and removes the position when fully flat.
func (e *Engine) closeTranche(ctx context.Context, pos *Position, n int, price float64, reason string, now time.Time) {
	if n <= 0 || pos.Remaining <= 0 {
		return
	}
	if n > pos.Remaining {
		n = pos.Remaining
	}

	side := broker.Sell
	if !pos.long() {
		side = broker.Buy
	}
	if _, err := e.broker.SubmitOrder(ctx, side, n); err != nil {
		// Book the exit anyway so the state machine cannot wedge on a
		// broker outage; the discrepancy is loud in the logs.
		metrics.OrdersFailed.Inc()
		log.Error().Err(err).
			Str("session", string(pos.Session)).
			Str("reason", reason).
			Int("size", n).
			Msg("❌ Closing order failed")
	}

	pnl := e.risk.CapProfit(pos.Realized, pos.pnlDollars(price, n, e.risk.PointValue()))
	pos.Realized = pos.Realized.Add(pnl)
	pos.Remaining -= n
	e.risk.RecordResult(pos.Session, pnl)

	snap := e.risk.State()
	daily, _ := snap.DailyPnL.Float64()
	metrics.DailyPnL.Set(daily)
	metrics.ExitsByReason.WithLabelValues(reason).Inc()

	if e.journal != nil {
		_ = e.journal.Append(storage.TradeRecord{
			Timestamp: now,
			Session:   string(pos.Session),
			Bias:      string(pos.Bias),
			Entry:     pos.Entry,
			Stop:      pos.Stop,
			Target:    pos.Target,
			Size:      n,
			OrderID:   pos.OrderID,
			Outcome:   reason,
			PnL:       pnl,
		})
		_ = e.journal.BumpDailyStats(string(e.today), pnl)
	}
	e.notify(reason, pos.Session, pos.Bias, price, n, pnl)

	log.Info().
		Str("session", string(pos.Session)).
		Str("reason", reason).
		Int("closed", n).
		Int("remaining", pos.Remaining).
		Float64("price", price).
		Str("pnl", pnl.StringFixed(2)).
		Msg("📉 Position tranche closed")

	if pos.Remaining == 0 {
		e.removePosition(pos)
		st := e.state(pos.Session)
		if st.phase == Entered {
			st.phase = e.afterSlot(pos.Session)
		}
	}
}

func (e *Engine) removePosition(target *Position) {
	out := e.open[:0]
	for _, pos := range e.open {
		if pos != target {
			out = append(out, pos)
		}
	}
	e.open = out
	metrics.OpenPositions.Set(float64(len(e.open)))
}

// journalEntry records the entry-side event for a pending signal.
func (e *Engine) journalEntry(p pendingEntry, sess session.Name, size int, orderID, outcome string, now time.Time) {
	if e.journal == nil {
		return
	}
	_ = e.journal.Append(storage.TradeRecord{
		Timestamp: now,
		Session:   string(sess),
		Bias:      string(p.conf.Bias),
		Entry:     p.entry,
		Stop:      p.stop,
		Target:    p.target,
		Size:      size,
		OrderID:   orderID,
		Outcome:   outcome,
		PnL:       decimal.Zero,
	})
}

func (e *Engine) notify(action string, sess session.Name, bias drange.Bias, price float64, size int, pnl decimal.Decimal) {
	if e.notifier == nil {
		return
	}
	e.notifier.NotifyTrade(action, string(sess), string(bias), price, size, pnl)
}

// OpenPositions returns a snapshot of the currently open positions.
func (e *Engine) OpenPositions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Position, 0, len(e.open))
	for _, pos := range e.open {
		out = append(out, *pos)
	}
	return out
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
