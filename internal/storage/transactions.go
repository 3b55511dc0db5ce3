package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// SaveTransactions stores transactions, ignoring ones whose hash already exists.
// It returns how many rows were inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, hash, date, description, raw_description, amount, type, account_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range transactions {
			txn := transactions[i]
			if txn.Hash == "" {
				txn.Hash = txn.GenerateHash()
			}
			if txn.Type == "" {
				txn.Type = model.TransactionDebit
			}

			res, err := stmt.ExecContext(ctx,
				txn.ID, txn.Hash, txn.Date, txn.Description, txn.RawDescription,
				txn.Amount, string(txn.Type), txn.AccountID,
			)
			if err != nil {
				return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetAllTransactions returns every stored transaction in date order.
func (s *SQLiteStorage) GetAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hash, date, description, raw_description, amount, type, COALESCE(account_id, '')
		FROM transactions
		ORDER BY date, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		var txnType string
		if err := rows.Scan(&txn.ID, &txn.Hash, &txn.Date, &txn.Description, &txn.RawDescription,
			&txn.Amount, &txnType, &txn.AccountID); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Type = model.TransactionType(txnType)
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// GetTransactionCount returns the number of stored transactions.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
