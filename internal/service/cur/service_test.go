package cur

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudsathi/internal/config"
	"cloudsathi/internal/domain"
	"cloudsathi/internal/service/athena"
)

type fakeRunner struct {
	queries []domain.Query
	rs      *domain.ResultSet
	err     error
}

func (f *fakeRunner) Run(_ context.Context, q domain.Query) (*domain.ResultSet, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if f.rs == nil {
		return &domain.ResultSet{}, nil
	}
	return f.rs, nil
}

var testCfg = config.AWSConfig{
	AthenaDatabase:       "athenacurcfn_my_cur_report",
	AthenaTable:          "my_cur_report",
	AthenaOutputLocation: "s3://my-athena-results-bucket/",
}

func newTestService(cfg config.AWSConfig, runner Runner) *Service {
	svc := NewService(cfg, runner, slog.New(slog.DiscardHandler))
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestTopResources_DefaultWindowAndLimit(t *testing.T) {
	runner := &fakeRunner{}
	report, err := newTestService(testCfg, runner).TopResources(context.Background(), Params{})
	require.NoError(t, err)

	assert.Equal(t, "top-resources", report.Name)
	assert.Equal(t, DefaultLimit, report.Limit)
	assert.Equal(t, "2024-02-14", report.Range.Start.Format(domain.DateLayout))
	assert.Equal(t, "2024-03-15", report.Range.End.Format(domain.DateLayout))

	require.Len(t, runner.queries, 1)
	q := runner.queries[0]
	assert.Equal(t, "athenacurcfn_my_cur_report", q.Database)
	assert.Equal(t, "s3://my-athena-results-bucket/", q.OutputLocation)
	assert.Contains(t, q.SQL, `FROM "my_cur_report"`)
	assert.Contains(t, q.SQL, "SUM(line_item_unblended_cost) AS total_cost")
	assert.Contains(t, q.SQL, "line_item_line_item_type = 'Usage'")
	assert.Contains(t, q.SQL, ">= DATE '2024-02-14'")
	assert.Contains(t, q.SQL, "< DATE '2024-03-16'")
	assert.Contains(t, q.SQL, "ORDER BY total_cost DESC")
	assert.Contains(t, q.SQL, "LIMIT 10")
	assert.Contains(t, q.SQL, "'%Y-%m-%d %H:%i:%s'")
}

func TestUsageByOperation_ExplicitRange(t *testing.T) {
	runner := &fakeRunner{}
	r := domain.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	report, err := newTestService(testCfg, runner).UsageByOperation(context.Background(), Params{Limit: 25, Range: &r})
	require.NoError(t, err)

	assert.Equal(t, r, report.Range)
	q := runner.queries[0].SQL
	assert.Contains(t, q, "line_item_operation")
	assert.Contains(t, q, "LIMIT 25")
	assert.Contains(t, q, ">= DATE '2024-01-01'")
	assert.Contains(t, q, "< DATE '2024-02-01'")
	assert.NotContains(t, q, "line_item_resource_id")
}

func TestParams_Validation(t *testing.T) {
	bad := domain.DateRange{
		Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		name string
		p    Params
		want string
	}{
		{"negative limit", Params{Limit: -1}, domain.KindInvalidParameter},
		{"limit too large", Params{Limit: MaxLimit + 1}, domain.KindInvalidParameter},
		{"inverted range", Params{Range: &bad}, domain.KindInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			_, err := newTestService(testCfg, runner).TopResources(context.Background(), tt.p)
			assert.Equal(t, tt.want, domain.KindOf(err))
			assert.Empty(t, runner.queries, "no query may be submitted")
		})
	}
}

func TestInvalidTableName(t *testing.T) {
	cfg := testCfg
	cfg.AthenaTable = `cur"; DROP TABLE x; --`
	runner := &fakeRunner{}
	_, err := newTestService(cfg, runner).TopResources(context.Background(), Params{})
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	assert.Empty(t, runner.queries)
}

func TestRunnerErrorPropagates(t *testing.T) {
	want := &domain.QueryExecutionError{State: domain.StatusFailed, Reason: "HIVE_CURSOR_ERROR"}
	_, err := newTestService(testCfg, &fakeRunner{err: want}).TopResources(context.Background(), Params{})
	assert.True(t, errors.Is(err, want))
}

func TestReport_NormalizeMockRows(t *testing.T) {
	runner := athena.NewRunner(nil, athena.Options{}, slog.New(slog.DiscardHandler), nil)
	report, err := newTestService(testCfg, runner).TopResources(context.Background(), Params{})
	require.NoError(t, err)
	require.Len(t, report.Result.Records, 5)

	cost, err := report.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "USD", cost.Currency)
	require.Len(t, cost.Breakdown, 5)
	assert.Equal(t, "i-0123456789abcdef0 / AmazonEC2", cost.Breakdown[0].Label)
	assert.True(t, decimal.RequireFromString("572.45").Equal(cost.TotalCost), cost.TotalCost.String())
}

func TestValidateIdentifier(t *testing.T) {
	assert.NoError(t, ValidateIdentifier("my_cur_report"))
	assert.NoError(t, ValidateIdentifier("_cur2024"))
	assert.Error(t, ValidateIdentifier(""))
	assert.Error(t, ValidateIdentifier("1abc"))
	assert.Error(t, ValidateIdentifier("a-b"))
	assert.Error(t, ValidateIdentifier("a b"))
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"my_table"`, QuoteIdentifier("my_table"))
	assert.Equal(t, `"we""ird"`, QuoteIdentifier(`we"ird`))
	assert.Equal(t, `'2024-01-01'`, QuoteLiteral("2024-01-01"))
	assert.Equal(t, `'O''Brien'`, QuoteLiteral("O'Brien"))
}
