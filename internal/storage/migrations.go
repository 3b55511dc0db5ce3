package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					raw_description TEXT NOT NULL,
					amount REAL NOT NULL,
					type TEXT NOT NULL DEFAULT 'debit',
					account_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,

				`CREATE TABLE IF NOT EXISTS merchant_discoveries (
					id TEXT PRIMARY KEY,
					raw_code TEXT UNIQUE NOT NULL,
					context_snapshot TEXT NOT NULL,
					reasoning TEXT NOT NULL DEFAULT '',
					final_inference TEXT NOT NULL,
					confidence REAL NOT NULL,
					merchant_type TEXT NOT NULL DEFAULT 'other',
					reasoning_summary TEXT NOT NULL DEFAULT '',
					used_web_search INTEGER NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'pending',
					user_validated_name TEXT,
					user_feedback_notes TEXT,
					impact_score REAL NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					validated_at DATETIME
				)`,
				`CREATE INDEX idx_discoveries_status ON merchant_discoveries(status)`,

				`CREATE TABLE IF NOT EXISTS discovery_learning (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					pattern_signature TEXT NOT NULL,
					original_code TEXT NOT NULL,
					context_summary TEXT NOT NULL DEFAULT '',
					ai_inference TEXT NOT NULL,
					ai_confidence REAL NOT NULL,
					user_correction TEXT,
					was_correct INTEGER NOT NULL,
					error_type TEXT,
					context_features TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_learning_signature ON discovery_learning(pattern_signature)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Order review queue by impact",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX idx_discoveries_impact ON merchant_discoveries(status, impact_score DESC)`)
			return err
		},
	},
}

// Migrate runs all database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= version {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
