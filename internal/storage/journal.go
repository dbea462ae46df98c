package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE JOURNAL - Append-only persistence for external reporting
// ═══════════════════════════════════════════════════════════════════════════════

// TradeRecord is one journal row per submitted, failed or paper trade.
// Written by the engine, consumed by reporting; never read back by the core.
type TradeRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time
	Session   string `gorm:"index"`
	Bias      string
	Entry     float64
	Stop      float64
	Target    float64
	Size      int
	OrderID   string          `gorm:"index"`
	Outcome   string          // OPEN, PAPER, FAILED, MISSED, STOP, TARGET_PARTIAL, TRAILING, TIME_LIMIT, ROLLOVER
	PnL       decimal.Decimal `gorm:"type:decimal(18,2)"`
	CreatedAt time.Time
}

// DailyStat aggregates one trading day for dashboards.
type DailyStat struct {
	Date   string `gorm:"primaryKey"`
	Trades int
	Wins   int
	Losses int
	PnL    decimal.Decimal `gorm:"type:decimal(18,2)"`
}

// Journal persists trade records to sqlite (file path) or postgres (URL).
// With an empty DSN it runs disabled and every call is a no-op.
type Journal struct {
	db      *gorm.DB
	enabled bool
}

// Open connects and migrates the journal schema.
func Open(dsn string) (*Journal, error) {
	if dsn == "" {
		log.Warn().Msg("No journal DSN configured, running without persistence")
		return &Journal{}, nil
	}

	var (
		db  *gorm.DB
		err error
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	}
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&TradeRecord{}, &DailyStat{}); err != nil {
		return nil, err
	}

	log.Info().Msg("💾 Trade journal connected")
	return &Journal{db: db, enabled: true}, nil
}

// Enabled reports whether persistence is active.
func (j *Journal) Enabled() bool { return j != nil && j.enabled }

// Append writes one trade record.
func (j *Journal) Append(rec TradeRecord) error {
	if !j.Enabled() {
		return nil
	}
	if err := j.db.Create(&rec).Error; err != nil {
		log.Error().Err(err).Msg("Failed to journal trade")
		return err
	}
	return nil
}

// RecentTrades returns the latest records, newest first.
func (j *Journal) RecentTrades(limit int) ([]TradeRecord, error) {
	if !j.Enabled() {
		return nil, nil
	}
	var recs []TradeRecord
	err := j.db.Order("created_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// BumpDailyStats folds one realized result into the day's aggregate row.
func (j *Journal) BumpDailyStats(date string, pnl decimal.Decimal) error {
	if !j.Enabled() {
		return nil
	}
	var stat DailyStat
	if err := j.db.Where(DailyStat{Date: date}).FirstOrCreate(&stat).Error; err != nil {
		return err
	}
	stat.Trades++
	if pnl.GreaterThan(decimal.Zero) {
		stat.Wins++
	} else {
		stat.Losses++
	}
	stat.PnL = stat.PnL.Add(pnl)
	return j.db.Save(&stat).Error
}
