// Package cur answers cost questions from the AWS Cost & Usage Report table
// through Athena.
package cur

import (
	"context"
	"log/slog"
	"time"

	"cloudsathi/internal/config"
	"cloudsathi/internal/domain"
	"cloudsathi/internal/service/billing"
)

// Limit bounds.
const (
	DefaultLimit = 10
	MaxLimit     = 1000
)

// DefaultWindowDays is used when the caller gives no date range.
const DefaultWindowDays = 30

// Runner executes a query to completion.
type Runner interface {
	Run(ctx context.Context, q domain.Query) (*domain.ResultSet, error)
}

// Params selects the rows of a CUR report. A nil Range means the last
// DefaultWindowDays days; a zero Limit means DefaultLimit.
type Params struct {
	Limit int
	Range *domain.DateRange
}

// Report is a CUR query result with the metadata needed to normalize it.
type Report struct {
	Name   string
	Range  domain.DateRange
	Limit  int
	Result *domain.ResultSet

	labelColumns []string
}

// amountColumns lists where a row's cost may live; canned rows use the raw
// line-item column rather than the SQL alias.
var amountColumns = []string{"total_cost", "line_item_unblended_cost"}

// Normalize reshapes the report into a CostReport.
func (r *Report) Normalize() (*domain.CostReport, error) {
	return billing.Normalize(r.Range, billing.CURResult{
		Records:        r.Result.Records,
		LabelColumns:   r.labelColumns,
		AmountColumns:  amountColumns,
		CurrencyColumn: "line_item_currency_code",
	})
}

// Service builds and runs CUR queries.
type Service struct {
	cfg    config.AWSConfig
	runner Runner
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(cfg config.AWSConfig, runner Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, runner: runner, logger: logger.With("component", "cur"), now: time.Now}
}

// TopResources returns the most expensive resources by unblended cost.
func (s *Service) TopResources(ctx context.Context, p Params) (*Report, error) {
	return s.run(ctx, "top-resources", p, topResourcesSQL,
		[]string{"line_item_resource_id", "line_item_product_code"})
}

// UsageByOperation returns cost grouped by API operation and product.
func (s *Service) UsageByOperation(ctx context.Context, p Params) (*Report, error) {
	return s.run(ctx, "usage-by-operation", p, usageByOperationSQL,
		[]string{"line_item_operation", "line_item_product_code"})
}

func (s *Service) run(
	ctx context.Context,
	name string,
	p Params,
	build func(table string, r domain.DateRange, limit int) string,
	labels []string,
) (*Report, error) {
	limit, r, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	if err := ValidateIdentifier(s.cfg.AthenaTable); err != nil {
		return nil, domain.ErrConfiguration("aws", "invalid AWS_ATHENA_TABLE: %v", err)
	}

	q := domain.Query{
		SQL:            build(s.cfg.AthenaTable, r, limit),
		Database:       s.cfg.AthenaDatabase,
		OutputLocation: s.cfg.AthenaOutputLocation,
		WorkGroup:      s.cfg.AthenaWorkGroup,
	}
	s.logger.DebugContext(ctx, "running CUR query", "report", name, "limit", limit,
		"start", r.Start.Format(domain.DateLayout), "end", r.End.Format(domain.DateLayout))

	rs, err := s.runner.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Report{Name: name, Range: r, Limit: limit, Result: rs, labelColumns: labels}, nil
}

func (s *Service) resolve(p Params) (int, domain.DateRange, error) {
	limit := p.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return 0, domain.DateRange{}, domain.ErrInvalidParameter("limit must be between 1 and %d, got %d", MaxLimit, p.Limit)
	}

	var r domain.DateRange
	if p.Range != nil {
		r = *p.Range
	} else {
		r = domain.LastDays(s.now(), DefaultWindowDays)
	}
	if err := r.Validate(); err != nil {
		return 0, domain.DateRange{}, err
	}
	return limit, r, nil
}
