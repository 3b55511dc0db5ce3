package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidStatus      = errors.New("invalid discovery status")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidDiscovery   = errors.New("invalid discovery")
	ErrInvalidLearning    = errors.New("invalid learning record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Description == "" && txn.RawDescription == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	if txn.Type != "" && !txn.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	return nil
}

func validateDiscovery(d *model.MerchantDiscovery) error {
	if d == nil {
		return fmt.Errorf("%w: discovery", ErrNilParameter)
	}
	if strings.TrimSpace(d.RawCode) == "" {
		return fmt.Errorf("%w: missing raw code", ErrInvalidDiscovery)
	}
	if strings.TrimSpace(d.FinalInference) == "" {
		return fmt.Errorf("%w: missing inference", ErrInvalidDiscovery)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidDiscovery, d.Confidence)
	}
	if d.Status != "" && !d.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	return nil
}

func validateLearning(l *model.DiscoveryLearning) error {
	if l == nil {
		return fmt.Errorf("%w: learning", ErrNilParameter)
	}
	if strings.TrimSpace(l.OriginalCode) == "" {
		return fmt.Errorf("%w: missing original code", ErrInvalidLearning)
	}
	if strings.TrimSpace(l.PatternSignature) == "" {
		return fmt.Errorf("%w: missing pattern signature", ErrInvalidLearning)
	}
	if l.WasCorrect && l.UserCorrection != nil {
		return fmt.Errorf("%w: a confirmed record cannot carry a correction", ErrInvalidLearning)
	}
	return nil
}
