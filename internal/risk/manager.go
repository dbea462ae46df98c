package risk

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/qxcapital/drbot/internal/session"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK MANAGER - Gatekeeper for all trades
// ═══════════════════════════════════════════════════════════════════════════════
//
// Owns the day-scoped risk state: virtual balance, daily P&L, per-session
// trade counts, win/loss streaks and the resulting dynamic risk tier.
// Mutated only by realized P&L events and the daily reset.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Tiers maps streak state to the fraction of the virtual balance risked per
// trade. Losses drop to Cooldown; a win streak of exactly WinStreakLen runs
// at Raised; a longer streak reverts to Baseline.
type Tiers struct {
	Baseline     float64
	Raised       float64
	Cooldown     float64
	WinStreakLen int
}

// DefaultTiers mirrors the tuned production values. They are configuration,
// not validated policy.
func DefaultTiers() Tiers {
	return Tiers{Baseline: 0.015, Raised: 0.02, Cooldown: 0.01, WinStreakLen: 2}
}

// Config holds contract economics and risk limits.
type Config struct {
	TickSize   float64 // price increment in points
	TickValue  float64 // dollars per tick per contract
	PointValue float64 // dollars per point per contract

	VirtualBalance      float64 // sizing base, not the broker balance
	MaxDailyLoss        float64 // trading halts for the day at -MaxDailyLoss
	MaxTradesPerSession int
	Tiers               Tiers

	// CappedSizing additionally bounds worst-case loss per trade and the
	// contract count, for compliance-bounded challenge accounts.
	CappedSizing    bool
	MaxLossPerTrade float64
	MaxContracts    int

	// ProfitCapPerTrade clamps realized profit per trade when positive.
	// Zero disables the cap.
	ProfitCapPerTrade float64
}

// DefaultConfig is MES micro contract economics with the live-engine limits.
func DefaultConfig() Config {
	return Config{
		TickSize:            0.25,
		TickValue:           1.25,
		PointValue:          5.0,
		VirtualBalance:      2000,
		MaxDailyLoss:        2000,
		MaxTradesPerSession: 2,
		Tiers:               DefaultTiers(),
		MaxLossPerTrade:     240,
		MaxContracts:        48,
	}
}

// Manager is the process-wide risk state machine. Safe for concurrent use,
// though the engine loop is its only mutator.
type Manager struct {
	mu  sync.RWMutex
	cfg Config

	balance       decimal.Decimal
	dailyPnL      decimal.Decimal
	sessionTrades map[session.Name]int
	sessionPnL    map[session.Name]decimal.Decimal
	consecWins    int
	consecLosses  int
	riskPct       float64
}

// NewManager creates a risk manager with the given limits.
func NewManager(cfg Config) *Manager {
	m := &Manager{cfg: cfg}
	m.reset()
	log.Info().
		Float64("virtual_balance", cfg.VirtualBalance).
		Float64("max_daily_loss", cfg.MaxDailyLoss).
		Int("max_trades_per_session", cfg.MaxTradesPerSession).
		Bool("capped_sizing", cfg.CappedSizing).
		Msg("🛡️ Risk manager initialized")
	return m
}

func (m *Manager) reset() {
	m.balance = decimal.NewFromFloat(m.cfg.VirtualBalance)
	m.dailyPnL = decimal.Zero
	m.sessionTrades = make(map[session.Name]int)
	m.sessionPnL = make(map[session.Name]decimal.Decimal)
	m.consecWins = 0
	m.consecLosses = 0
	m.riskPct = m.cfg.Tiers.Baseline
}

// ResetDaily clears all day-scoped state at civil-date rollover.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	log.Info().Msg("📅 Daily risk counters reset")
}

// CanTrade reports whether a new trade may open for the session: the daily
// loss limit must not be breached and the session slot cap not exhausted.
func (m *Manager) CanTrade(n session.Name) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dailyPnL.LessThanOrEqual(decimal.NewFromFloat(-m.cfg.MaxDailyLoss)) {
		log.Warn().Str("daily_pnl", m.dailyPnL.StringFixed(2)).Msg("🚨 Daily loss limit reached")
		return false
	}
	if m.sessionTrades[n] >= m.cfg.MaxTradesPerSession {
		log.Debug().
			Str("session", string(n)).
			Int("trades", m.sessionTrades[n]).
			Msg("Session trade cap reached")
		return false
	}
	return true
}

// ConsumeSlot counts one trade attempt against the session cap. Failed and
// missed entries consume a slot too, so a persistently failing breakout
// cannot retry forever.
func (m *Manager) ConsumeSlot(n session.Name) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionTrades[n]++
	return m.sessionTrades[n]
}

// PositionSize converts the current risk budget into a contract count.
// Guarantees at least one contract; a degenerate zero stop distance sizes
// to one contract rather than failing.
func (m *Manager) PositionSize(entry, stop float64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stopDistance := abs(entry - stop)
	ticks := stopDistance / m.cfg.TickSize
	riskPerContract := ticks * m.cfg.TickValue
	riskDollars, _ := m.balance.Mul(decimal.NewFromFloat(m.riskPct)).Float64()
	if riskDollars < 0 {
		riskDollars = 0
	}

	contracts := 1
	if riskPerContract > 0 {
		contracts = int(riskDollars / riskPerContract)
		if contracts < 1 {
			contracts = 1
		}
	}

	if m.cfg.CappedSizing && stopDistance > 0 {
		if maxLoss := stopDistance * float64(contracts) * m.cfg.PointValue; maxLoss > m.cfg.MaxLossPerTrade {
			contracts = int(m.cfg.MaxLossPerTrade / (stopDistance * m.cfg.PointValue))
			if contracts < 1 {
				contracts = 1
			}
		}
		if contracts > m.cfg.MaxContracts {
			contracts = m.cfg.MaxContracts
		}
	}

	log.Debug().
		Str("balance", m.balance.StringFixed(2)).
		Float64("risk_pct", m.riskPct).
		Float64("risk_dollars", riskDollars).
		Float64("stop_points", stopDistance).
		Float64("risk_per_contract", riskPerContract).
		Int("contracts", contracts).
		Msg("Position sizing")
	return contracts
}

// CapProfit applies the optional per-trade profit ceiling to a realized
// P&L amount, given what the trade has already banked.
func (m *Manager) CapProfit(alreadyRealized, pnl decimal.Decimal) decimal.Decimal {
	if m.cfg.ProfitCapPerTrade <= 0 || pnl.LessThanOrEqual(decimal.Zero) {
		return pnl
	}
	ceiling := decimal.NewFromFloat(m.cfg.ProfitCapPerTrade)
	if alreadyRealized.Add(pnl).GreaterThan(ceiling) {
		capped := ceiling.Sub(alreadyRealized)
		if capped.IsNegative() {
			return decimal.Zero
		}
		return capped
	}
	return pnl
}

// RecordResult applies a realized P&L event: updates daily P&L, the virtual
// balance, the session ledger and the streak-driven risk tier.
func (m *Manager) RecordResult(n session.Name, pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dailyPnL = m.dailyPnL.Add(pnl)
	m.balance = m.balance.Add(pnl)
	m.sessionPnL[n] = m.sessionPnL[n].Add(pnl)

	t := m.cfg.Tiers
	if pnl.GreaterThan(decimal.Zero) {
		m.consecWins++
		m.consecLosses = 0
		switch {
		case m.consecWins == t.WinStreakLen:
			m.riskPct = t.Raised
		case m.consecWins > t.WinStreakLen:
			m.riskPct = t.Baseline
		}
	} else {
		m.consecLosses++
		m.consecWins = 0
		m.riskPct = t.Cooldown
	}

	log.Info().
		Str("session", string(n)).
		Str("pnl", pnl.StringFixed(2)).
		Str("daily_pnl", m.dailyPnL.StringFixed(2)).
		Str("balance", m.balance.StringFixed(2)).
		Int("win_streak", m.consecWins).
		Int("loss_streak", m.consecLosses).
		Float64("risk_pct", m.riskPct).
		Msg("📊 Result recorded")
}

// Snapshot is a read-only view of the current risk state for status output.
type Snapshot struct {
	Balance       decimal.Decimal
	DailyPnL      decimal.Decimal
	ConsecWins    int
	ConsecLosses  int
	RiskPercent   float64
	SessionTrades map[session.Name]int
}

// State returns a copy of the current risk state.
func (m *Manager) State() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make(map[session.Name]int, len(m.sessionTrades))
	for k, v := range m.sessionTrades {
		trades[k] = v
	}
	return Snapshot{
		Balance:       m.balance,
		DailyPnL:      m.dailyPnL,
		ConsecWins:    m.consecWins,
		ConsecLosses:  m.consecLosses,
		RiskPercent:   m.riskPct,
		SessionTrades: trades,
	}
}

// PointValue exposes the contract's dollars-per-point for P&L math.
func (m *Manager) PointValue() float64 { return m.cfg.PointValue }

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
