// Package journal keeps a durable record of every checkout attempt so that
// payments captured without a completed order can be reconciled by support.
package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omkarjtg/ecomm/internal/domain/checkout"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/infrastructure/config"
	"github.com/omkarjtg/ecomm/internal/infrastructure/logger"
	"github.com/omkarjtg/ecomm/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Journal records checkout intents
type Journal interface {
	Record(ctx context.Context, intent *checkout.Intent) error
	Get(ctx context.Context, id string) (*checkout.Intent, error)
	NeedingSupport(ctx context.Context, limit int) ([]*checkout.Intent, error)
	MarkResolved(ctx context.Context, id string) error
	Close() error
}

// GormJournal implements Journal using GORM
type GormJournal struct {
	db *gorm.DB
}

// NewGormJournal wraps an open connection. The schema is migrated on open.
func NewGormJournal(db *gorm.DB) (*GormJournal, error) {
	if err := db.AutoMigrate(&EntryModel{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &GormJournal{db: db}, nil
}

// Options for Open
type Options struct {
	Logger  *zap.Logger
	Tracing bool
}

// Open connects to the configured journal database. The "none" driver
// returns a journal that discards everything.
func Open(cfg config.CheckoutConfig, opts Options) (Journal, error) {
	log := logger.OrNop(opts.Logger)

	var dialector gorm.Dialector
	dbSystem := cfg.JournalDriver
	switch cfg.JournalDriver {
	case config.JournalNone:
		log.Info("Checkout journal disabled")
		return Nop{}, nil
	case config.JournalSQLite:
		if err := ensureDir(cfg.JournalDSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.JournalDSN)
	case config.JournalPostgres:
		dialector = postgres.Open(cfg.JournalDSN)
		dbSystem = "postgresql"
	default:
		return nil, fmt.Errorf("journal: unknown driver %q", cfg.JournalDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(log, gormlogger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: failed to connect to database: %w", err)
	}

	tracing := telemetry.DefaultDBTracingConfig()
	tracing.Enabled = opts.Tracing
	tracing.DBSystem = dbSystem
	if err := telemetry.NewDBTracingPlugin(tracing, log).Register(db); err != nil {
		return nil, fmt.Errorf("journal: register tracing: %w", err)
	}

	j, err := NewGormJournal(db)
	if err != nil {
		return nil, err
	}
	log.Info("Checkout journal opened", zap.String("driver", cfg.JournalDriver))
	return j, nil
}

func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("journal: create directory %s: %w", dir, err)
	}
	return nil
}

// Record upserts the current snapshot of intent
func (j *GormJournal) Record(ctx context.Context, intent *checkout.Intent) error {
	model, err := EntryModelFromDomain(intent)
	if err != nil {
		return err
	}
	return j.db.WithContext(logger.WithIntentID(ctx, model.ID)).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"state", "failed_step", "last_error", "gateway_order_id",
				"payment_id", "order_id", "needs_support", "payload", "updated_at",
			}),
		}).
		Create(model).Error
}

// Get loads one intent by ID
func (j *GormJournal) Get(ctx context.Context, id string) (*checkout.Intent, error) {
	var model EntryModel
	err := j.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain()
}

// NeedingSupport lists unresolved paid intents that failed, oldest first
func (j *GormJournal) NeedingSupport(ctx context.Context, limit int) ([]*checkout.Intent, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []EntryModel
	err := j.db.WithContext(ctx).
		Where("needs_support = ? AND resolved = ?", true, false).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*checkout.Intent, 0, len(models))
	for i := range models {
		intent, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, nil
}

// MarkResolved flags an entry as handled by support
func (j *GormJournal) MarkResolved(ctx context.Context, id string) error {
	res := j.db.WithContext(ctx).Model(&EntryModel{}).Where("id = ?", id).Update("resolved", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Close closes the database connection
func (j *GormJournal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Nop is a journal that keeps nothing
type Nop struct{}

func (Nop) Record(context.Context, *checkout.Intent) error { return nil }

func (Nop) Get(context.Context, string) (*checkout.Intent, error) { return nil, shared.ErrNotFound }

func (Nop) NeedingSupport(context.Context, int) ([]*checkout.Intent, error) { return nil, nil }

func (Nop) MarkResolved(context.Context, string) error { return shared.ErrNotFound }

func (Nop) Close() error { return nil }
