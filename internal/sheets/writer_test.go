package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/stillsuit/internal/insights"
	"github.com/Veraticus/stillsuit/internal/model"
)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC)
}

func sampleTransactions() []model.Transaction {
	return []model.Transaction{
		{ID: "t1", Type: model.TypeExpense, Amount: 10.5, Currency: "EUR", Date: day(2), Merchant: "Bakery", CategoryID: model.StringPtr("food")},
		{ID: "t2", Type: model.TypeExpense, Amount: 4.5, Currency: "EUR", Date: day(5), Merchant: "Cafe", CategoryID: model.StringPtr("food"), Note: "espresso"},
		{ID: "t3", Type: model.TypeExpense, Amount: 100, Currency: "EUR", Date: day(1), Merchant: "Landlord", IsRecurring: true},
		{ID: "t4", Type: model.TypeIncome, Amount: 2000, Currency: "EUR", Date: day(3), Merchant: "Employer"},
	}
}

func sampleReport(result *insights.Result) *Report {
	categories := []model.Category{{ID: "food", Name: "Food"}}
	return BuildReport(day(1), day(31), sampleTransactions(), categories, result)
}

func TestBuildReport(t *testing.T) {
	report := sampleReport(nil)

	assert.Equal(t, "EUR", report.Currency)
	assert.Equal(t, "2000", report.TotalIncome.String())
	assert.Equal(t, "115", report.TotalExpenses.String())
	assert.Equal(t, "1885", report.Net().String())

	require.Len(t, report.Categories, 2)
	assert.Equal(t, insights.UncategorizedName, report.Categories[0].Name)
	assert.Equal(t, 1, report.Categories[0].Count)
	assert.Equal(t, "Food", report.Categories[1].Name)
	assert.Equal(t, 2, report.Categories[1].Count)
	assert.Equal(t, "15", report.Categories[1].Amount.String())

	var order []string
	for _, row := range report.Transactions {
		order = append(order, row.Merchant)
	}
	assert.Equal(t, []string{"Cafe", "Employer", "Bakery", "Landlord"}, order)
	assert.Empty(t, report.Recommendations)
}

func TestBuildReport_UnknownCategoryKeepsID(t *testing.T) {
	txs := []model.Transaction{
		{ID: "t1", Type: model.TypeExpense, Amount: 1, Date: day(1), CategoryID: model.StringPtr("gone")},
	}
	report := BuildReport(day(1), day(2), txs, nil, nil)
	require.Len(t, report.Categories, 1)
	assert.Equal(t, "gone", report.Categories[0].Name)
	assert.Equal(t, "", report.Currency)
}

func TestPrepareReportData(t *testing.T) {
	values := prepareReportData(sampleReport(nil))

	require.Len(t, values, 20)
	assert.Equal(t, "Finance Report", values[0][0])
	assert.Equal(t, "Mar 1, 2025 - Mar 31, 2025", values[0][1])
	assert.Equal(t, []any{"Total Income", "2000.00"}, values[3])
	assert.Equal(t, []any{"Net", "1885.00"}, values[5])
	assert.Equal(t, []any{"Total Transactions", 4}, values[6])
	assert.Equal(t, []any{insights.UncategorizedName, 1, "100.00"}, values[10])
	assert.Equal(t, []any{"Food", 2, "15.00"}, values[11])
	assert.Equal(t, []any{"2025-03-05", "Cafe", "-4.50", "Food", "expense", "", "espresso"}, values[16])
	assert.Equal(t, []any{"2025-03-03", "Employer", "2000.00", insights.UncategorizedName, "income", "", ""}, values[17])
	assert.Equal(t, "yes", values[19][5])
}

func TestPrepareReportData_Recommendations(t *testing.T) {
	result := &insights.Result{Recommendations: []string{insights.RecommendBudgetOverrun}}
	values := prepareReportData(sampleReport(result))

	require.Len(t, values, 23)
	assert.Equal(t, []any{"Recommendations"}, values[13])
	assert.Equal(t, []any{insights.RecommendBudgetOverrun}, values[14])
}

// fakeSheets serves the subset of the Sheets API the writer uses.
type fakeSheets struct {
	existing     map[string]bool
	ranges       []string
	rows         [][]any
	created      int
	clears       int
	batchUpdates int
	mu           sync.Mutex
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/v4/spreadsheets":
		f.created++
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{SpreadsheetId: "new-sheet", SpreadsheetUrl: "https://example.test/new-sheet"})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.clears++
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.batchUpdates++
		_ = json.NewEncoder(w).Encode(sheets.BatchUpdateSpreadsheetResponse{})
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.ranges = append(f.ranges, path[strings.LastIndex(path, "/")+1:])
		f.rows = append(f.rows, vr.Values...)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/"):
		id := strings.TrimPrefix(path, "/v4/spreadsheets/")
		if !f.existing[id] {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{SpreadsheetId: id})
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func newTestWriter(t *testing.T, fake *fakeSheets, cfg Config) *Writer {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	w, err := NewWriterWithService(srv, cfg, nil)
	require.NoError(t, err)
	return w
}

func TestWriter_CreatesSpreadsheetAndWritesBatches(t *testing.T) {
	fake := &fakeSheets{}
	cfg := DefaultConfig()
	cfg.BatchSize = 8
	cfg.RetryAttempts = 1
	w := newTestWriter(t, fake, cfg)

	id, err := w.Write(context.Background(), sampleReport(nil))
	require.NoError(t, err)

	assert.Equal(t, "new-sheet", id)
	assert.Equal(t, 1, fake.created)
	assert.Equal(t, 1, fake.clears)
	assert.Equal(t, 1, fake.batchUpdates)
	assert.Equal(t, []string{"A1", "A9", "A17"}, fake.ranges)
	require.Len(t, fake.rows, 20)
	assert.Equal(t, "Finance Report", fake.rows[0][0])
}

func TestWriter_ExistingSpreadsheet(t *testing.T) {
	fake := &fakeSheets{existing: map[string]bool{"abc": true}}
	cfg := DefaultConfig()
	cfg.SpreadsheetID = "abc"
	cfg.EnableFormatting = false
	cfg.RetryAttempts = 1
	w := newTestWriter(t, fake, cfg)

	id, err := w.Write(context.Background(), sampleReport(nil))
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, 0, fake.created)
	assert.Equal(t, 0, fake.batchUpdates)
	assert.Equal(t, []string{"A1"}, fake.ranges)
}

func TestWriter_MissingSpreadsheet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpreadsheetID = "missing"
	w := newTestWriter(t, &fakeSheets{}, cfg)

	_, err := w.Write(context.Background(), sampleReport(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to access spreadsheet missing")
}

func TestNewWriterWithService_RejectsBadLimits(t *testing.T) {
	_, err := NewWriterWithService(nil, Config{}, nil)
	assert.Error(t, err)
}

func TestNewWriter_RequiresCredentials(t *testing.T) {
	_, err := NewWriter(context.Background(), DefaultConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no authentication method configured")
}
