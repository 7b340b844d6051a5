package insights

import (
	"github.com/shopspring/decimal"

	"github.com/Veraticus/stillsuit/internal/model"
)

// SpikeFactor is how many times its category mean an amount must exceed.
var SpikeFactor = decimal.NewFromInt(2)

// FindSpikes flags expenses whose amount is more than SpikeFactor times the
// mean of every expense in the same category. Results follow input order.
func FindSpikes(txs []model.Transaction, categories []model.Category) []Spike {
	type stat struct {
		sum   decimal.Decimal
		count int64
	}
	stats := make(map[string]*stat)
	for i := range txs {
		if !txs[i].IsExpense() {
			continue
		}
		key := txs[i].CategoryKey()
		s, ok := stats[key]
		if !ok {
			s = &stat{sum: decimal.Zero}
			stats[key] = s
		}
		s.sum = s.sum.Add(decimal.NewFromFloat(txs[i].Amount))
		s.count++
	}

	names := model.CategoryNames(categories)
	var spikes []Spike
	for i := range txs {
		tx := &txs[i]
		if !tx.IsExpense() {
			continue
		}
		s := stats[tx.CategoryKey()]
		mean := s.sum.Div(decimal.NewFromInt(s.count))
		if decimal.NewFromFloat(tx.Amount).GreaterThan(mean.Mul(SpikeFactor)) {
			spikes = append(spikes, Spike{
				Date:          tx.Date,
				TransactionID: tx.ID,
				CategoryID:    tx.CategoryKey(),
				CategoryName:  categoryName(names, tx.CategoryKey()),
				Amount:        tx.Amount,
				CategoryMean:  mean.InexactFloat64(),
			})
		}
	}
	return spikes
}

// FindSubscriptions lists each distinct (merchant, amount) pair among rows
// flagged recurring, in first-seen order.
func FindSubscriptions(txs []model.Transaction) []Subscription {
	type key struct {
		merchant string
		amount   string
	}
	seen := make(map[key]bool)
	var subs []Subscription
	for i := range txs {
		tx := &txs[i]
		if !tx.IsRecurring {
			continue
		}
		k := key{merchant: tx.Merchant, amount: decimal.NewFromFloat(tx.Amount).String()}
		if seen[k] {
			continue
		}
		seen[k] = true
		subs = append(subs, Subscription{
			TransactionID: tx.ID,
			Merchant:      tx.Merchant,
			Currency:      tx.Currency,
			Amount:        tx.Amount,
		})
	}
	return subs
}

// ComputeDiagnostics runs every diagnostic over txs.
func ComputeDiagnostics(txs []model.Transaction, categories []model.Category) Diagnostics {
	return Diagnostics{
		Spikes:        FindSpikes(txs, categories),
		Subscriptions: FindSubscriptions(txs),
	}
}
