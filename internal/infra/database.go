package infra

import (
	"fmt"

	"priceops/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs
// AutoMigrate for the audit tables, then applies idempotent SQL patches
// that GORM cannot express.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := db.AutoMigrate(
		&model.RollbackSession{},
		&model.PriceChange{},
	); err != nil {
		return nil, fmt.Errorf("AutoMigrate: %w", err)
	}

	if err := applySchemaPatches(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}

	return db, nil
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot fully
// handle. Each statement uses IF NOT EXISTS semantics so re-running on an
// already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// Composite index for the rollback replay query (session + insertion order).
		`CREATE INDEX IF NOT EXISTS idx_price_changes_session_created
		     ON price_changes (session_id, created_at)`,
		// Partial index for spotting sessions that were never finalized.
		`CREATE INDEX IF NOT EXISTS idx_rollback_sessions_pending
		     ON rollback_sessions (started_at)
		     WHERE status = 'PENDING'`,
	}
	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
