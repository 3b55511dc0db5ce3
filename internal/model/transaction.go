package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// TransactionType distinguishes card debits, credits and instant transfers.
type TransactionType string

// Transaction types.
const (
	TransactionDebit  TransactionType = "debit"
	TransactionCredit TransactionType = "credit"
	TransactionPix    TransactionType = "pix"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDebit, TransactionCredit, TransactionPix:
		return true
	}
	return false
}

// Transaction represents a single statement line from any source.
type Transaction struct {
	Date           time.Time       `json:"date"`
	ID             string          `json:"id"`
	Description    string          `json:"description"`     // Cleaned description
	RawDescription string          `json:"raw_description"` // Verbatim statement text
	Type           TransactionType `json:"type"`
	AccountID      string          `json:"account_id,omitempty"`
	Hash           string          `json:"hash,omitempty"`
	Amount         float64         `json:"amount"` // Negative for expenses
}

// SourceText returns the text the merchant code is derived from.
func (t *Transaction) SourceText() string {
	if t.Description != "" {
		return t.Description
	}
	return t.RawDescription
}

// VariationText returns the verbatim description, falling back to the cleaned one.
func (t *Transaction) VariationText() string {
	if t.RawDescription != "" {
		return t.RawDescription
	}
	return t.Description
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.VariationText(),
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
