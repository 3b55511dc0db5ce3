package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
)

const discoveryColumns = `id, raw_code, context_snapshot, reasoning, final_inference, confidence,
	merchant_type, reasoning_summary, used_web_search, status, user_validated_name,
	user_feedback_notes, impact_score, created_at, validated_at`

// AddMerchantDiscovery stores a new discovery. An empty ID gets a fresh UUID,
// an empty status becomes pending. A second discovery for the same code fails
// with common.ErrDuplicateEntry.
func (s *SQLiteStorage) AddMerchantDiscovery(ctx context.Context, d *model.MerchantDiscovery) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDiscovery(d); err != nil {
		return err
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = model.StatusPending
	}
	if d.MerchantType == "" {
		d.MerchantType = model.MerchantOther
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	snapshot, err := json.Marshal(d.ContextSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal context snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO merchant_discoveries (`+discoveryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, d.RawCode, string(snapshot), d.Reasoning, d.FinalInference, d.Confidence,
		string(d.MerchantType), d.ReasoningSummary, d.UsedWebSearch, string(d.Status),
		nullString(d.UserValidatedName), nullString(d.UserFeedbackNotes), d.ImpactScore,
		d.CreatedAt, nullTime(d.ValidatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("discovery for code %q: %w", d.RawCode, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to save discovery: %w", err)
	}
	return nil
}

// GetDiscoveryByCode returns the discovery for a normalized code.
func (s *SQLiteStorage) GetDiscoveryByCode(ctx context.Context, code string) (*model.MerchantDiscovery, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}
	return s.getDiscovery(ctx, s.db, `raw_code = ?`, code)
}

// GetDiscoveryByID returns the discovery with the given ID.
func (s *SQLiteStorage) GetDiscoveryByID(ctx context.Context, id string) (*model.MerchantDiscovery, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getDiscovery(ctx, s.db, `id = ?`, id)
}

func (s *SQLiteStorage) getDiscovery(ctx context.Context, q queryable, where string, arg any) (*model.MerchantDiscovery, error) {
	row := q.QueryRowContext(ctx, `SELECT `+discoveryColumns+` FROM merchant_discoveries WHERE `+where, arg)
	d, err := scanDiscovery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDiscoveries lists discoveries, highest impact first.
func (s *SQLiteStorage) GetDiscoveries(ctx context.Context, filter service.DiscoveryFilter) ([]model.MerchantDiscovery, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + discoveryColumns + ` FROM merchant_discoveries`
	var args []any
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
		}
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY impact_score DESC, created_at, raw_code`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return s.queryDiscoveries(ctx, query, args...)
}

// GetValidatedDiscoveries returns confirmed and corrected discoveries.
func (s *SQLiteStorage) GetValidatedDiscoveries(ctx context.Context) ([]model.MerchantDiscovery, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryDiscoveries(ctx, `
		SELECT `+discoveryColumns+` FROM merchant_discoveries
		WHERE status IN (?, ?)
		ORDER BY validated_at DESC, raw_code
	`, string(model.StatusConfirmed), string(model.StatusCorrected))
}

func (s *SQLiteStorage) queryDiscoveries(ctx context.Context, query string, args ...any) ([]model.MerchantDiscovery, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query discoveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var discoveries []model.MerchantDiscovery
	for rows.Next() {
		d, err := scanDiscovery(rows)
		if err != nil {
			return nil, err
		}
		discoveries = append(discoveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating discoveries: %w", err)
	}
	return discoveries, nil
}

// UpdateDiscoveryStatus moves a pending discovery to a terminal status.
func (s *SQLiteStorage) UpdateDiscoveryStatus(ctx context.Context, id string, update model.StatusUpdate) error {
	return s.RecordValidation(ctx, id, update, nil)
}

// RecordValidation applies the status transition and appends the learning
// record atomically. Only pending discoveries can transition; anything else
// fails with common.ErrAlreadyValidated and leaves the history untouched.
func (s *SQLiteStorage) RecordValidation(ctx context.Context, id string, update model.StatusUpdate, learning *model.DiscoveryLearning) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := update.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}
	if learning != nil {
		if err := validateLearning(learning); err != nil {
			return err
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE merchant_discoveries
			SET status = ?, user_validated_name = ?, user_feedback_notes = ?, validated_at = ?
			WHERE id = ? AND status = ?
		`, string(update.Status), nullString(update.ValidatedName), nullString(update.Notes), now,
			id, string(model.StatusPending))
		if err != nil {
			return fmt.Errorf("failed to update discovery status: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			var status string
			err := tx.QueryRowContext(ctx, `SELECT status FROM merchant_discoveries WHERE id = ?`, id).Scan(&status)
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to check discovery status: %w", err)
			}
			return fmt.Errorf("discovery %s is %s: %w", id, status, common.ErrAlreadyValidated)
		}

		if learning == nil {
			return nil
		}
		return insertLearning(ctx, tx, learning)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiscovery(row rowScanner) (*model.MerchantDiscovery, error) {
	var (
		d             model.MerchantDiscovery
		snapshot      string
		merchantType  string
		status        string
		validatedName sql.NullString
		feedbackNotes sql.NullString
		validatedAt   sql.NullTime
	)
	err := row.Scan(&d.ID, &d.RawCode, &snapshot, &d.Reasoning, &d.FinalInference, &d.Confidence,
		&merchantType, &d.ReasoningSummary, &d.UsedWebSearch, &status, &validatedName,
		&feedbackNotes, &d.ImpactScore, &d.CreatedAt, &validatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan discovery: %w", err)
	}

	if err := json.Unmarshal([]byte(snapshot), &d.ContextSnapshot); err != nil {
		return nil, fmt.Errorf("%w: context snapshot for %s: %w", common.ErrDatabaseCorrupted, d.RawCode, err)
	}
	d.MerchantType = model.MerchantType(merchantType)
	d.Status = model.DiscoveryStatus(status)
	if validatedName.Valid {
		d.UserValidatedName = &validatedName.String
	}
	if feedbackNotes.Valid {
		d.UserFeedbackNotes = &feedbackNotes.String
	}
	if validatedAt.Valid {
		t := validatedAt.Time
		d.ValidatedAt = &t
	}
	return &d, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
