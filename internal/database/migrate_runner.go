package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"courier/internal/middleware"

	"gorm.io/gorm"
)

// migrationLockKey serialises schema changes across API replicas that start
// together. Any fixed int64 works as long as nothing else in the database uses it.
const migrationLockKey int64 = 0x636f7572696572 // "courier"

// MigrationLog is one row of the applied-migrations ledger.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// Ledger applies and reverts migrations and remembers which ones ran.
type Ledger interface {
	Versions(ctx context.Context) ([]int, error)
	// Apply reports false when the version was already recorded, typically by
	// a replica that got the lock first.
	Apply(ctx context.Context, m Migration) (bool, error)
	Revert(ctx context.Context, m Migration) error
}

type gormLedger struct {
	db *gorm.DB
}

// NewLedger returns a Ledger over the migration_logs table.
func NewLedger(db *gorm.DB) Ledger {
	return &gormLedger{db: db}
}

func (l *gormLedger) Versions(ctx context.Context) ([]int, error) {
	var versions []int
	err := l.db.WithContext(ctx).Model(&MigrationLog{}).Order("version").Pluck("version", &versions).Error
	if err != nil && !isMissingTableError(err) {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	return versions, nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// locked runs fn in a transaction that holds the migration lock on postgres.
// Other dialects rely on the transaction alone.
func (l *gormLedger) locked(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error; err != nil {
				return fmt.Errorf("acquire migration lock: %w", err)
			}
		}
		return fn(tx)
	})
}

func (l *gormLedger) recorded(tx *gorm.DB, version int) (bool, error) {
	var n int64
	if err := tx.Model(&MigrationLog{}).Where("version = ?", version).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *gormLedger) Apply(ctx context.Context, m Migration) (bool, error) {
	applied := false
	err := l.locked(ctx, func(tx *gorm.DB) error {
		done, err := l.recorded(tx, m.Version)
		if err != nil || done {
			return err
		}
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("migration %s: %w", m, err)
		}
		if err := tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", m, err)
		}
		applied = true
		return nil
	})
	return applied, err
}

func (l *gormLedger) Revert(ctx context.Context, m Migration) error {
	return l.locked(ctx, func(tx *gorm.DB) error {
		res := tx.Where("version = ?", m.Version).Delete(&MigrationLog{})
		if res.Error != nil {
			return fmt.Errorf("unrecord migration %s: %w", m, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("migration %s has not been applied", m)
		}
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("revert migration %s: %w", m, err)
		}
		return nil
	})
}

// migrationPlan compares the ledger with the migrations compiled in.
type migrationPlan struct {
	Pending []Migration
	Unknown []int
}

func planMigrations(applied []int, registered []Migration) migrationPlan {
	var plan migrationPlan
	for _, m := range registered {
		if !slices.Contains(applied, m.Version) {
			plan.Pending = append(plan.Pending, m)
		}
	}
	for _, v := range applied {
		if !slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == v }) {
			plan.Unknown = append(plan.Unknown, v)
		}
	}
	slices.Sort(plan.Unknown)
	return plan
}

// Check fails when the database has run migrations this build does not
// know about, which usually means an older binary is pointed at a newer schema.
func (p migrationPlan) Check() error {
	if len(p.Unknown) == 0 {
		return nil
	}
	versions := make([]string, len(p.Unknown))
	for i, v := range p.Unknown {
		versions[i] = fmt.Sprintf("%06d", v)
	}
	return fmt.Errorf("migration_logs contains unknown versions not present in code: %s",
		strings.Join(versions, ", "))
}

const ensureMigrationLogTableSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func ensureLedgerTable(ctx context.Context, db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		return db.WithContext(ctx).Exec(ensureMigrationLogTableSQL).Error
	}
	return db.WithContext(ctx).AutoMigrate(&MigrationLog{})
}

// RunMigrations brings the schema up to the newest embedded migration.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := ensureLedgerTable(ctx, db); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}
	applied, err := applyPending(ctx, NewLedger(db), migrations)
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "schema up to date", slog.Any("applied", applied))
	return nil
}

// applyPending applies every pending migration in version order and returns
// the versions this call applied. It stops at the first failure.
func applyPending(ctx context.Context, ledger Ledger, registered []Migration) ([]int, error) {
	versions, err := ledger.Versions(ctx)
	if err != nil {
		return nil, err
	}
	plan := planMigrations(versions, registered)
	if err := plan.Check(); err != nil {
		return nil, err
	}

	var applied []int
	for _, m := range plan.Pending {
		ok, err := ledger.Apply(ctx, m)
		if err != nil {
			return applied, err
		}
		if !ok {
			middleware.Logger.DebugContext(ctx, "migration applied elsewhere", slog.Int("version", m.Version))
			continue
		}
		middleware.Logger.InfoContext(ctx, "migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// RollbackMigration runs the down script of one applied migration and drops
// its ledger row in the same transaction.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	if err := NewLedger(db).Revert(ctx, *m); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "migration rolled back", slog.Int("version", version), slog.String("name", m.Name))
	return nil
}
