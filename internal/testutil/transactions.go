package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// BaseDate anchors generated transactions.
var BaseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TransactionBuilder assembles statement lines with unique IDs.
type TransactionBuilder struct {
	t    *testing.T
	txns []model.Transaction
}

// NewTransactions starts an empty builder.
func NewTransactions(t *testing.T) *TransactionBuilder {
	t.Helper()
	return &TransactionBuilder{t: t}
}

// Add appends one debit on date.
func (b *TransactionBuilder) Add(description string, amount float64, date time.Time) *TransactionBuilder {
	return b.add(description, amount, date, model.TransactionDebit)
}

// AddPix appends one instant transfer on date.
func (b *TransactionBuilder) AddPix(description string, amount float64, date time.Time) *TransactionBuilder {
	return b.add(description, amount, date, model.TransactionPix)
}

// Monthly appends one debit per month on day, for months months starting at BaseDate.
func (b *TransactionBuilder) Monthly(description string, amount float64, day, months int) *TransactionBuilder {
	for m := 0; m < months; m++ {
		b.Add(description, amount, time.Date(BaseDate.Year(), BaseDate.Month()+time.Month(m), day, 0, 0, 0, 0, time.UTC))
	}
	return b
}

// Variations appends one debit per description, a day apart.
func (b *TransactionBuilder) Variations(amount float64, descriptions ...string) *TransactionBuilder {
	for i, d := range descriptions {
		b.Add(d, amount, BaseDate.AddDate(0, 0, i))
	}
	return b
}

// Build returns the accumulated transactions.
func (b *TransactionBuilder) Build() []model.Transaction {
	b.t.Helper()
	if len(b.txns) == 0 {
		b.t.Fatalf("transaction builder is empty")
	}
	return append([]model.Transaction(nil), b.txns...)
}

func (b *TransactionBuilder) add(description string, amount float64, date time.Time, typ model.TransactionType) *TransactionBuilder {
	txn := model.Transaction{
		ID:             fmt.Sprintf("t%04d", len(b.txns)+1),
		Date:           date,
		Description:    description,
		RawDescription: description,
		Amount:         amount,
		Type:           typ,
		AccountID:      "test-card",
	}
	txn.Hash = txn.GenerateHash()
	b.txns = append(b.txns, txn)
	return b
}
