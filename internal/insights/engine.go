package insights

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/recurrence"
	"github.com/Veraticus/stillsuit/internal/service"
)

// Compute runs every insight over in-memory rows. windowTxs feeds the
// month-based overview and projection; historyTxs feeds the diagnostics.
// The projection only counts window rows dated on or before now's day.
func Compute(now time.Time, windowTxs, historyTxs []model.Transaction, budgets []model.Budget, categories []model.Category) Result {
	overview := ComputeOverview(now, windowTxs, categories)
	diagnostics := ComputeDiagnostics(historyTxs, categories)
	predictions := ComputePredictions(now, SpendSoFar(now, windowTxs), budgets)

	return Result{
		GeneratedAt:     now,
		Overview:        overview,
		Diagnostics:     diagnostics,
		Predictions:     predictions,
		Recommendations: Recommend(overview, diagnostics, predictions),
	}
}

// Engine loads rows from the store and computes insights. It only reads.
type Engine struct {
	reader service.Reader
	expand bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecurringExpansion makes the overview and projection count every
// occurrence of recurring templates in the previous and current month
// instead of the stored template rows.
func WithRecurringExpansion() Option {
	return func(e *Engine) { e.expand = true }
}

// NewEngine creates an engine over reader.
func NewEngine(reader service.Reader, opts ...Option) *Engine {
	e := &Engine{reader: reader}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate computes insights as of now.
func (e *Engine) Generate(ctx context.Context, now time.Time) (*Result, error) {
	txs, err := e.reader.ListTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	budgets, err := e.reader.ListBudgets(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load budgets: %w", err)
	}
	categories, err := e.reader.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	window := txs
	if e.expand {
		curStart, curEnd := MonthBounds(now)
		window = recurrence.ExpandForRange(txs, curStart.AddDate(0, -1, 0), curEnd.AddDate(0, 0, -1))
	}

	result := Compute(now, window, txs, budgets, categories)
	slog.Debug("computed insights",
		"transactions", len(txs),
		"window", len(window),
		"spikes", len(result.Diagnostics.Spikes),
		"overruns", len(result.Predictions.Overruns))
	return &result, nil
}
