// Package summary combines AWS and Azure cost reports for one date range.
package summary

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"cloudsathi/internal/domain"
	"cloudsathi/internal/service/billing"
)

// CostSource produces a CostReport for a date range.
type CostSource interface {
	GetCosts(ctx context.Context, r domain.DateRange) (*domain.CostReport, error)
}

// Summary is the combined view. Subtotals are per currency; amounts in
// different currencies are never added together.
type Summary struct {
	Range     domain.DateRange
	AWS       *domain.CostReport
	Azure     *domain.CostReport
	Subtotals map[string]decimal.Decimal
}

// Service fans out to both providers.
type Service struct {
	aws   CostSource
	azure CostSource
}

// NewService creates a Service.
func NewService(aws, azure CostSource) *Service {
	return &Service{aws: aws, azure: azure}
}

// Summarize fetches both reports concurrently. If either fails the other is
// cancelled and the first error is returned.
func (s *Service) Summarize(ctx context.Context, r domain.DateRange) (*Summary, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	out := &Summary{Range: r}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep, err := s.aws.GetCosts(gctx, r)
		out.AWS = rep
		return err
	})
	g.Go(func() error {
		rep, err := s.azure.GetCosts(gctx, r)
		out.Azure = rep
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Subtotals = billing.SubtotalsByCurrency(out.AWS, out.Azure)
	return out, nil
}
