// Package ofx imports OFX/QFX bank and credit card statements.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

var (
	severityTag   = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	unclosedTag   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	pixKeyword    = regexp.MustCompile(`\bPIX\b`)
	leadingDate   = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
	statementNoun = []string{
		"COMPRA CARTAO DEBITO ",
		"COMPRA CARTAO CREDITO ",
		"COMPRA CARTAO ",
		"COMPRA NO DEBITO ",
		"COMPRA NO CREDITO ",
		"COMPRA ",
		"PAGAMENTO ",
		"POS PURCHASE ",
		"DEBIT CARD PURCHASE ",
	}
	genericNames = map[string]bool{
		"DEBITO":    true,
		"CREDITO":   true,
		"COMPRA":    true,
		"PAGAMENTO": true,
		"DEBIT":     true,
		"CREDIT":    true,
	}
)

// Parser converts OFX statements into transactions.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: common.LoggerOrDefault(logger)}
}

// preprocess fixes formatting issues common in bank-exported SGML files.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityTag.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTag.ReplaceAllString(content, "$1>")
}

// ParseFile parses an OFX/QFX document. Amounts keep their sign: negative
// for expenses.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			bankStmts++
			transactions = append(transactions, p.convertAll(stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))...)
		}
	}

	for _, msg := range resp.CreditCard {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			ccStmts++
			transactions = append(transactions, p.convertAll(stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))...)
		}
	}

	p.logger.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

func (p *Parser) convertAll(list []ofxgo.Transaction, accountID string) []model.Transaction {
	out := make([]model.Transaction, 0, len(list))
	for _, ofxTx := range list {
		txn, err := convertTransaction(ofxTx, accountID)
		if err != nil {
			p.logger.Warn("Skipping OFX transaction", "fitid", ofxTx.FiTID, "error", err)
			continue
		}
		out = append(out, txn)
	}
	return out
}

func convertTransaction(ofxTx ofxgo.Transaction, accountID string) (model.Transaction, error) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}
	value, _ := amount.Float64()

	raw := rawDescription(ofxTx)
	if raw == "" {
		return model.Transaction{}, fmt.Errorf("%w: empty description", common.ErrInvalidInput)
	}

	txn := model.Transaction{
		ID:             string(ofxTx.FiTID),
		Date:           ofxTx.DtPosted.Time,
		Description:    cleanDescription(ofxTx),
		RawDescription: raw,
		Amount:         value,
		AccountID:      accountID,
		Type:           detectType(raw, value),
	}
	txn.Hash = txn.GenerateHash()
	if txn.ID == "" {
		txn.ID = txn.Hash[:16]
	}
	return txn, nil
}

// rawDescription keeps NAME and MEMO verbatim.
func rawDescription(tx ofxgo.Transaction) string {
	name := strings.TrimSpace(string(tx.Name))
	if tx.Payee != nil && name == "" {
		name = strings.TrimSpace(string(tx.Payee.Name))
	}
	memo := strings.TrimSpace(string(tx.Memo))
	switch {
	case name == "":
		return memo
	case memo == "" || memo == name:
		return name
	default:
		return name + " " + memo
	}
}

// cleanDescription picks the most merchant-like field and strips statement
// boilerplate in front of it.
func cleanDescription(tx ofxgo.Transaction) string {
	name := strings.TrimSpace(string(tx.Name))
	if tx.Payee != nil && tx.Payee.Name != "" {
		name = strings.TrimSpace(string(tx.Payee.Name))
	}
	if memo := strings.TrimSpace(string(tx.Memo)); memo != "" && (name == "" || genericNames[strings.ToUpper(name)]) {
		name = memo
	}

	upper := strings.ToUpper(name)
	for _, prefix := range statementNoun {
		if strings.HasPrefix(upper, prefix) && len(name) > len(prefix) {
			name = name[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(leadingDate.ReplaceAllString(name, ""))
}

func detectType(raw string, amount float64) model.TransactionType {
	switch {
	case pixKeyword.MatchString(strings.ToUpper(raw)):
		return model.TransactionPix
	case amount > 0:
		return model.TransactionCredit
	default:
		return model.TransactionDebit
	}
}

// GetAccounts lists the distinct account IDs in an OFX document.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	seen := make(map[string]bool)
	var accounts []string
	add := func(id ofxgo.String) {
		if id != "" && !seen[string(id)] {
			seen[string(id)] = true
			accounts = append(accounts, string(id))
		}
	}
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(stmt.BankAcctFrom.AcctID)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(stmt.CCAcctFrom.AcctID)
		}
	}
	return accounts, nil
}
