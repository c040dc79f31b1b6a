package costexplorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudsathi/internal/config"
	"cloudsathi/internal/domain"
	"cloudsathi/internal/metrics"
)

type fakeCE struct {
	outputs []*costexplorer.GetCostAndUsageOutput
	err     error
	inputs  []costexplorer.GetCostAndUsageInput
}

func (f *fakeCE) GetCostAndUsage(_ context.Context, in *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	f.inputs = append(f.inputs, *in)
	if f.err != nil {
		return nil, f.err
	}
	return f.outputs[len(f.inputs)-1], nil
}

var validAWS = config.AWSConfig{AccessKeyID: "AKIA", SecretAccessKey: "secret", Region: "us-east-1"}

var jan = domain.DateRange{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
}

func group(service, amount, unit string) types.Group {
	return types.Group{
		Keys:    []string{service},
		Metrics: map[string]types.MetricValue{"UnblendedCost": {Amount: aws.String(amount), Unit: aws.String(unit)}},
	}
}

func day(start, end string, groups ...types.Group) types.ResultByTime {
	return types.ResultByTime{
		TimePeriod: &types.DateInterval{Start: aws.String(start), End: aws.String(end)},
		Groups:     groups,
	}
}

// countingFactory returns a factory that records how many times it was called.
func countingFactory(api API, calls *int) ClientFactory {
	return func(config.AWSConfig) (API, error) {
		*calls++
		return api, nil
	}
}

func newTestService(cfg config.AWSConfig, factory ClientFactory, m *metrics.Metrics) *Service {
	return NewService(cfg, factory, slog.New(slog.DiscardHandler), m)
}

func TestGetCosts_SingleEC2Row(t *testing.T) {
	fake := &fakeCE{outputs: []*costexplorer.GetCostAndUsageOutput{{
		ResultsByTime: []types.ResultByTime{day("2024-01-01", "2024-01-02", group("EC2", "10.0", "USD"))},
	}}}
	calls := 0
	svc := newTestService(validAWS, countingFactory(fake, &calls), nil)

	report, err := svc.GetCosts(context.Background(), jan)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.True(t, decimal.NewFromInt(10).Equal(report.TotalCost))
	assert.Equal(t, "USD", report.Currency)
	require.Len(t, report.Breakdown, 1)
	assert.Equal(t, "EC2", report.Breakdown[0].Label)
	assert.Equal(t, "2024-01-01", report.PeriodStart)
	assert.Equal(t, "2024-01-02", report.PeriodEnd)
}

func TestGetCosts_RequestShape(t *testing.T) {
	fake := &fakeCE{outputs: []*costexplorer.GetCostAndUsageOutput{{}}}
	calls := 0
	_, err := newTestService(validAWS, countingFactory(fake, &calls), nil).GetCosts(context.Background(), jan)
	require.NoError(t, err)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "2024-01-01", aws.ToString(in.TimePeriod.Start))
	assert.Equal(t, "2024-02-01", aws.ToString(in.TimePeriod.End), "end is exclusive")
	assert.Equal(t, types.GranularityDaily, in.Granularity)
	assert.Equal(t, []string{"UnblendedCost"}, in.Metrics)
	require.Len(t, in.GroupBy, 1)
	assert.Equal(t, types.GroupDefinitionTypeDimension, in.GroupBy[0].Type)
	assert.Equal(t, "SERVICE", aws.ToString(in.GroupBy[0].Key))
}

func TestGetCosts_FollowsNextPageToken(t *testing.T) {
	fake := &fakeCE{outputs: []*costexplorer.GetCostAndUsageOutput{
		{
			ResultsByTime: []types.ResultByTime{day("2024-01-01", "2024-01-02", group("AmazonEC2", "3.5", "USD"), group("Tax", "0", "USD"))},
			NextPageToken: aws.String("page-2"),
		},
		{
			ResultsByTime: []types.ResultByTime{day("2024-01-02", "2024-01-03", group("AmazonS3", "1.5", "USD"))},
		},
	}}
	calls := 0
	report, err := newTestService(validAWS, countingFactory(fake, &calls), nil).GetCosts(context.Background(), jan)
	require.NoError(t, err)

	require.Len(t, fake.inputs, 2)
	assert.Nil(t, fake.inputs[0].NextPageToken)
	assert.Equal(t, "page-2", aws.ToString(fake.inputs[1].NextPageToken))
	assert.True(t, decimal.NewFromInt(5).Equal(report.TotalCost))
	assert.Len(t, report.Breakdown, 2)
	assert.Equal(t, "2024-01-03", report.PeriodEnd)
}

func TestGetCosts_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AWSConfig
	}{
		{"nothing set", config.AWSConfig{}},
		{"no secret", config.AWSConfig{AccessKeyID: "AKIA", Region: "us-east-1"}},
		{"no region", config.AWSConfig{AccessKeyID: "AKIA", SecretAccessKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			m := metrics.New()
			_, err := newTestService(tt.cfg, countingFactory(&fakeCE{}, &calls), m).GetCosts(context.Background(), jan)

			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "aws", cfgErr.Provider)
			assert.Equal(t, 0, calls, "client factory must not be called")
			assert.InDelta(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("aws", domain.KindConfiguration)), 0.001)
		})
	}
}

func TestGetCosts_InvalidRangeBeforeAnyCall(t *testing.T) {
	calls := 0
	_, err := newTestService(validAWS, countingFactory(&fakeCE{}, &calls), nil).GetCosts(context.Background(),
		domain.DateRange{Start: jan.End, End: jan.Start})
	assert.Equal(t, domain.KindInvalidRange, domain.KindOf(err))
	assert.Equal(t, 0, calls)
}

func TestGetCosts_RemoteErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"access denied", &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized to perform ce:GetCostAndUsage"}, domain.KindAuthorization},
		{"data unavailable", &smithy.GenericAPIError{Code: "DataUnavailableException", Message: "no data"}, domain.KindRemoteService},
		{"network", errors.New("dial tcp: timeout"), domain.KindRemoteService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := newTestService(validAWS, countingFactory(&fakeCE{err: tt.err}, &calls), nil).GetCosts(context.Background(), jan)
			assert.Equal(t, tt.want, domain.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestGetCosts_CallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeCE{err: fmt.Errorf("operation error Cost Explorer: GetCostAndUsage, %w", ctx.Err())}
	calls := 0

	_, err := newTestService(validAWS, countingFactory(fake, &calls), nil).GetCosts(ctx, jan)
	assert.Equal(t, domain.KindCancelled, domain.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetCosts_FactoryError(t *testing.T) {
	svc := newTestService(validAWS, func(config.AWSConfig) (API, error) {
		return nil, errors.New("bad endpoint")
	}, nil)
	_, err := svc.GetCosts(context.Background(), jan)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestGetCosts_UnparsableAmount(t *testing.T) {
	fake := &fakeCE{outputs: []*costexplorer.GetCostAndUsageOutput{{
		ResultsByTime: []types.ResultByTime{day("2024-01-01", "2024-01-02", group("EC2", "ten", "USD"))},
	}}}
	calls := 0
	_, err := newTestService(validAWS, countingFactory(fake, &calls), nil).GetCosts(context.Background(), jan)
	assert.Equal(t, domain.KindRemoteService, domain.KindOf(err))
}
