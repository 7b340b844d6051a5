// Package ofx converts OFX/QFX statements into transactions for bulk import.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"

	"github.com/Veraticus/stillsuit/internal/model"
)

// idNamespace scopes the deterministic ids derived from FITIDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Veraticus/stillsuit/ofx"))

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Statement is the result of parsing one file.
type Statement struct {
	Transactions []model.Transaction
	Accounts     []string
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	currency string
}

// NewParser creates a parser. currency is used when a statement has no CURDEF.
func NewParser(currency string) *Parser {
	if currency == "" {
		currency = "EUR"
	}
	return &Parser{currency: currency}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be upper case
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML exports sometimes drop the closing bracket of a bare tag line
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// ParseFile parses an OFX/QFX file and returns its transactions and accounts.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) (*Statement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	out := &Statement{}
	seen := make(map[string]bool)
	addAccount := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out.Accounts = append(out.Accounts, id)
		}
	}

	var bankStmts, ccStmts int
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		bankStmts++
		accountID := string(stmt.BankAcctFrom.AcctID)
		addAccount(accountID)
		out.Transactions = append(out.Transactions,
			p.convertList(stmt.BankTranList, accountID, p.statementCurrency(stmt.CurDef))...)
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		ccStmts++
		accountID := string(stmt.CCAcctFrom.AcctID)
		addAccount(accountID)
		out.Transactions = append(out.Transactions,
			p.convertList(stmt.BankTranList, accountID, p.statementCurrency(stmt.CurDef))...)
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(out.Transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return out, nil
}

func (p *Parser) statementCurrency(cur ofxgo.CurrSymbol) string {
	code := cur.String()
	if code == "" || code == "XXX" {
		return p.currency
	}
	return code
}

func (p *Parser) convertList(list *ofxgo.TransactionList, accountID, currency string) []model.Transaction {
	if list == nil {
		return nil
	}
	txs := make([]model.Transaction, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		txs = append(txs, p.convertTransaction(ofxTx, accountID, currency))
	}
	return txs
}

// convertTransaction maps one OFX transaction. OFX signs debits negative.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID, currency string) model.Transaction {
	amount, _ := ofxTx.TrnAmt.Float64()
	txType := model.TypeIncome
	if amount < 0 {
		amount = -amount
		txType = model.TypeExpense
	}

	tx := model.Transaction{
		Type:          txType,
		Amount:        amount,
		Currency:      currency,
		Date:          ofxTx.DtPosted.Time,
		Merchant:      extractMerchantName(ofxTx),
		PaymentMethod: strings.ToLower(ofxTx.TrnType.String()),
		Source:        model.SourceOFX,
	}
	if ofxTx.Memo != "" {
		tx.Note = string(ofxTx.Memo)
	}
	if ofxTx.CheckNum != "" {
		tx.Metadata = fmt.Sprintf(`{"check_number":%q}`, string(ofxTx.CheckNum))
	}

	tx.ID = transactionID(accountID, string(ofxTx.FiTID), &tx)
	return tx
}

// transactionID derives a stable id so re-importing a file is a no-op.
// Files without FITIDs fall back to the transaction fingerprint.
func transactionID(accountID, fitID string, tx *model.Transaction) string {
	key := accountID + ":" + fitID
	if fitID == "" {
		key = accountID + ":" + tx.GenerateHash()
	}
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD "
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
