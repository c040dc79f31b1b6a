// Package costexplorer reports AWS spend per service using the Cost Explorer API.
package costexplorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/shopspring/decimal"

	"cloudsathi/internal/awsutil"
	"cloudsathi/internal/config"
	"cloudsathi/internal/domain"
	"cloudsathi/internal/metrics"
	"cloudsathi/internal/service/billing"
)

const (
	provider = "aws"
	metric   = "UnblendedCost"
)

// API is the subset of the Cost Explorer client the service uses.
type API interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// ClientFactory builds a client once credentials have been checked.
type ClientFactory func(cfg config.AWSConfig) (API, error)

// NewClient is the production ClientFactory.
func NewClient(cfg config.AWSConfig) (API, error) {
	return costexplorer.NewFromConfig(awsutil.NewConfig(cfg)), nil
}

// Service fetches and normalizes daily per-service costs.
type Service struct {
	cfg     config.AWSConfig
	factory ClientFactory
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a Service. factory defaults to NewClient when nil.
func NewService(cfg config.AWSConfig, factory ClientFactory, logger *slog.Logger, m *metrics.Metrics) *Service {
	if factory == nil {
		factory = NewClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, factory: factory, logger: logger.With("component", "costexplorer"), metrics: m}
}

// GetCosts returns UnblendedCost grouped by SERVICE for every day in r.
func (s *Service) GetCosts(ctx context.Context, r domain.DateRange) (*domain.CostReport, error) {
	report, err := s.getCosts(ctx, r)
	if err != nil {
		s.metrics.ObserveProvider(provider, domain.KindOf(err))
		return nil, err
	}
	s.metrics.ObserveProvider(provider, "ok")
	return report, nil
}

func (s *Service) getCosts(ctx context.Context, r domain.DateRange) (*domain.CostReport, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if missing := s.cfg.MissingCredentials(); len(missing) > 0 {
		return nil, domain.ErrConfiguration(provider, "AWS credentials not configured: set %s", strings.Join(missing, ", "))
	}

	client, err := s.factory(s.cfg)
	if err != nil {
		return nil, domain.ErrConfiguration(provider, "create cost explorer client: %v", err)
	}

	// Cost Explorer treats End as exclusive; the caller's range is inclusive.
	in := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(r.Start.Format(domain.DateLayout)),
			End:   aws.String(r.End.AddDate(0, 0, 1).Format(domain.DateLayout)),
		},
		Granularity: types.GranularityDaily,
		Metrics:     []string{metric},
		GroupBy: []types.GroupDefinition{{
			Type: types.GroupDefinitionTypeDimension,
			Key:  aws.String("SERVICE"),
		}},
	}

	var result billing.CostExplorerResult
	pages := 0
	for {
		out, err := client.GetCostAndUsage(ctx, in)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, &domain.CancelledError{Err: err}
			}
			if awsutil.IsAccessDenied(err) {
				return nil, &domain.AuthorizationError{
					Provider: provider,
					Message:  "access denied to AWS Cost Explorer: " + awsutil.ErrorMessage(err),
					Err:      err,
				}
			}
			return nil, &domain.RemoteServiceError{Provider: provider, Message: awsutil.ErrorMessage(err), Err: err}
		}
		pages++
		buckets, err := toBuckets(out.ResultsByTime)
		if err != nil {
			return nil, err
		}
		result.Buckets = append(result.Buckets, buckets...)

		next := aws.ToString(out.NextPageToken)
		if next == "" || next == aws.ToString(in.NextPageToken) {
			break
		}
		in.NextPageToken = aws.String(next)
	}
	s.logger.DebugContext(ctx, "cost and usage fetched", "pages", pages, "buckets", len(result.Buckets))

	return billing.Normalize(r, result)
}

func toBuckets(results []types.ResultByTime) ([]billing.TimeBucket, error) {
	buckets := make([]billing.TimeBucket, 0, len(results))
	for _, res := range results {
		b := billing.TimeBucket{}
		if res.TimePeriod != nil {
			b.Start = aws.ToString(res.TimePeriod.Start)
			b.End = aws.ToString(res.TimePeriod.End)
		}
		for _, g := range res.Groups {
			mv, ok := g.Metrics[metric]
			if !ok || mv.Amount == nil {
				continue
			}
			amount, err := decimal.NewFromString(aws.ToString(mv.Amount))
			if err != nil {
				return nil, &domain.RemoteServiceError{
					Provider: provider,
					Message:  fmt.Sprintf("unparsable amount %q", aws.ToString(mv.Amount)),
					Err:      err,
				}
			}
			key := ""
			if len(g.Keys) > 0 {
				key = g.Keys[0]
			}
			b.Groups = append(b.Groups, billing.GroupCost{Key: key, Amount: amount, Unit: aws.ToString(mv.Unit)})
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}
