package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// AddDiscoveryLearning appends a learning record and sets its ID.
func (s *SQLiteStorage) AddDiscoveryLearning(ctx context.Context, l *model.DiscoveryLearning) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLearning(l); err != nil {
		return err
	}
	return insertLearning(ctx, s.db, l)
}

func insertLearning(ctx context.Context, q queryable, l *model.DiscoveryLearning) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	features, err := json.Marshal(l.ContextFeatures)
	if err != nil {
		return fmt.Errorf("failed to marshal context features: %w", err)
	}

	var errorType sql.NullString
	if l.ErrorType != nil {
		errorType = sql.NullString{String: string(*l.ErrorType), Valid: true}
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO discovery_learning (
			pattern_signature, original_code, context_summary, ai_inference, ai_confidence,
			user_correction, was_correct, error_type, context_features, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.PatternSignature, l.OriginalCode, l.ContextSummary, l.AIInference, l.AIConfidence,
		nullString(l.UserCorrection), l.WasCorrect, errorType, string(features), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save learning record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read learning record id: %w", err)
	}
	l.ID = id
	return nil
}

// GetAllLearning returns the full learning history, oldest first.
func (s *SQLiteStorage) GetAllLearning(ctx context.Context) ([]model.DiscoveryLearning, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern_signature, original_code, context_summary, ai_inference, ai_confidence,
			user_correction, was_correct, error_type, context_features, created_at
		FROM discovery_learning
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []model.DiscoveryLearning
	for rows.Next() {
		var (
			l          model.DiscoveryLearning
			correction sql.NullString
			errorType  sql.NullString
			features   string
		)
		if err := rows.Scan(&l.ID, &l.PatternSignature, &l.OriginalCode, &l.ContextSummary,
			&l.AIInference, &l.AIConfidence, &correction, &l.WasCorrect, &errorType,
			&features, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan learning record: %w", err)
		}

		if err := json.Unmarshal([]byte(features), &l.ContextFeatures); err != nil {
			return nil, fmt.Errorf("%w: context features for record %d: %w", common.ErrDatabaseCorrupted, l.ID, err)
		}
		if correction.Valid {
			l.UserCorrection = &correction.String
		}
		if errorType.Valid {
			et := model.ErrorType(errorType.String)
			l.ErrorType = &et
		}
		history = append(history, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learning history: %w", err)
	}
	return history, nil
}
