// Package azurecost reports Azure spend per resource group using the Cost
// Management query API.
package azurecost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/shopspring/decimal"

	"cloudsathi/internal/config"
	"cloudsathi/internal/domain"
	"cloudsathi/internal/metrics"
	"cloudsathi/internal/service/billing"
)

const provider = "azure"

// maxPages bounds how many NextLink pages one report may follow.
const maxPages = 100

// Fallback column positions used when the response carries no column metadata.
const (
	costIndex          = 0
	resourceGroupIndex = 1
	currencyIndex      = 2
)

// API is the subset of the Cost Management query client the service uses.
type API interface {
	Usage(ctx context.Context, scope string, parameters armcostmanagement.QueryDefinition, options *armcostmanagement.QueryClientUsageOptions) (armcostmanagement.QueryClientUsageResponse, error)
	// UsageNext fetches the page a previous result's NextLink points at.
	UsageNext(ctx context.Context, nextLink string, parameters armcostmanagement.QueryDefinition) (armcostmanagement.QueryResult, error)
}

// ClientFactory builds a client once credentials have been checked.
type ClientFactory func(cfg config.AzureConfig) (API, error)

// NewClient is the production ClientFactory: a client-secret credential
// feeding a Cost Management query client.
func NewClient(cfg config.AzureConfig) (API, error) {
	cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("create client secret credential: %w", err)
	}
	client, err := newQueryClient(cred, nil)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// queryClient adds NextLink paging, which the generated client lacks, on
// top of an ARM pipeline sharing the same credential.
type queryClient struct {
	*armcostmanagement.QueryClient
	pipeline runtime.Pipeline
}

func newQueryClient(cred azcore.TokenCredential, opts *arm.ClientOptions) (*queryClient, error) {
	client, err := armcostmanagement.NewQueryClient(cred, opts)
	if err != nil {
		return nil, fmt.Errorf("create query client: %w", err)
	}
	armClient, err := arm.NewClient("azurecost.Client", "v1.0.0", cred, opts)
	if err != nil {
		return nil, fmt.Errorf("create arm pipeline: %w", err)
	}
	return &queryClient{QueryClient: client, pipeline: armClient.Pipeline()}, nil
}

// UsageNext re-posts the query definition to nextLink, which carries the
// skip token for the following page.
func (c *queryClient) UsageNext(ctx context.Context, nextLink string, parameters armcostmanagement.QueryDefinition) (armcostmanagement.QueryResult, error) {
	var result armcostmanagement.QueryResult
	req, err := runtime.NewRequest(ctx, http.MethodPost, nextLink)
	if err != nil {
		return result, err
	}
	req.Raw().Header["Accept"] = []string{"application/json"}
	if err := runtime.MarshalAsJSON(req, parameters); err != nil {
		return result, err
	}
	resp, err := c.pipeline.Do(req)
	if err != nil {
		return result, err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return result, runtime.NewResponseError(resp)
	}
	if err := runtime.UnmarshalAsJSON(resp, &result); err != nil {
		return result, err
	}
	return result, nil
}

// Service fetches and normalizes daily per-resource-group costs.
type Service struct {
	cfg     config.AzureConfig
	factory ClientFactory
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a Service. factory defaults to NewClient when nil.
func NewService(cfg config.AzureConfig, factory ClientFactory, logger *slog.Logger, m *metrics.Metrics) *Service {
	if factory == nil {
		factory = NewClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, factory: factory, logger: logger.With("component", "azurecost"), metrics: m}
}

// Scope returns the subscription scope queried.
func (s *Service) Scope() string {
	return "/subscriptions/" + s.cfg.SubscriptionID
}

// GetCosts returns actual cost summed per resource group over r.
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
	if s.cfg.SubscriptionID == "" {
		return nil, domain.ErrConfiguration(provider, "Azure subscription ID not configured: set AZURE_SUBSCRIPTION_ID")
	}
	if missing := s.cfg.MissingCredentials(); len(missing) > 0 {
		return nil, domain.ErrConfiguration(provider, "Azure credentials not configured: set %s", strings.Join(missing, ", "))
	}

	client, err := s.factory(s.cfg)
	if err != nil {
		return nil, domain.ErrConfiguration(provider, "%v", err)
	}

	query := usageQuery(r)
	resp, err := client.Usage(ctx, s.Scope(), query, nil)
	if err != nil {
		return nil, classify(err)
	}

	result := resp.QueryResult
	var rows []billing.AzureRow
	pages := 0
	for {
		pages++
		page, err := parseRows(result)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page...)

		next := nextLink(result)
		if next == "" {
			break
		}
		if pages >= maxPages {
			return nil, &domain.RemoteServiceError{Provider: provider, Message: fmt.Sprintf("usage query returned more than %d pages", maxPages)}
		}
		result, err = client.UsageNext(ctx, next, query)
		if err != nil {
			return nil, classify(err)
		}
	}
	s.logger.DebugContext(ctx, "usage query returned", "pages", pages, "rows", len(rows))
	return billing.Normalize(r, billing.AzureResult{Rows: rows})
}

func usageQuery(r domain.DateRange) armcostmanagement.QueryDefinition {
	return armcostmanagement.QueryDefinition{
		Type:      to.Ptr(armcostmanagement.ExportTypeActualCost),
		Timeframe: to.Ptr(armcostmanagement.TimeframeTypeCustom),
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: to.Ptr(r.Start),
			To:   to.Ptr(r.End),
		},
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: to.Ptr(armcostmanagement.GranularityTypeDaily),
			Aggregation: map[string]*armcostmanagement.QueryAggregation{
				"totalCost": {
					Name:     to.Ptr("Cost"),
					Function: to.Ptr(armcostmanagement.FunctionTypeSum),
				},
			},
			Grouping: []*armcostmanagement.QueryGrouping{{
				Type: to.Ptr(armcostmanagement.QueryColumnTypeDimension),
				Name: to.Ptr("ResourceGroupName"),
			}},
		},
	}
}

func nextLink(result armcostmanagement.QueryResult) string {
	if result.Properties == nil || result.Properties.NextLink == nil {
		return ""
	}
	return *result.Properties.NextLink
}

// classify maps Azure SDK failures onto domain errors.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return &domain.CancelledError{Err: err}
	}
	var authFailed *azidentity.AuthenticationFailedError
	if errors.As(err, &authFailed) {
		return &domain.AuthorizationError{
			Provider:        provider,
			Message:         "Azure authentication failed: check tenant, client ID and secret",
			Unauthenticated: true,
			Err:             err,
		}
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusUnauthorized:
			return &domain.AuthorizationError{Provider: provider, Message: "Azure rejected the credentials: " + respErr.ErrorCode, Unauthenticated: true, Err: err}
		case http.StatusForbidden:
			return &domain.AuthorizationError{Provider: provider, Message: "access denied to Azure Cost Management: " + respErr.ErrorCode, Err: err}
		}
		return &domain.RemoteServiceError{Provider: provider, Message: fmt.Sprintf("%s (HTTP %d)", respErr.ErrorCode, respErr.StatusCode), Err: err}
	}
	return domain.ErrRemote(provider, err)
}

// columnLayout holds the row positions of the fields we read.
type columnLayout struct {
	cost, resourceGroup, currency int
}

func resolveColumns(cols []*armcostmanagement.QueryColumn) columnLayout {
	layout := columnLayout{cost: costIndex, resourceGroup: resourceGroupIndex, currency: currencyIndex}
	if len(cols) == 0 {
		return layout
	}
	found := columnLayout{cost: -1, resourceGroup: -1, currency: -1}
	for i, c := range cols {
		if c == nil || c.Name == nil {
			continue
		}
		switch strings.ToLower(*c.Name) {
		case "cost", "pretaxcost", "totalcost", "costusd":
			if found.cost < 0 {
				found.cost = i
			}
		case "resourcegroupname", "resourcegroup":
			found.resourceGroup = i
		case "currency":
			found.currency = i
		}
	}
	if found.cost >= 0 {
		layout.cost = found.cost
	}
	if found.resourceGroup >= 0 {
		layout.resourceGroup = found.resourceGroup
	}
	if found.currency >= 0 {
		layout.currency = found.currency
	}
	return layout
}

func parseRows(result armcostmanagement.QueryResult) ([]billing.AzureRow, error) {
	if result.Properties == nil {
		return nil, nil
	}
	layout := resolveColumns(result.Properties.Columns)
	rows := make([]billing.AzureRow, 0, len(result.Properties.Rows))
	for i, raw := range result.Properties.Rows {
		if len(raw) <= layout.cost {
			return nil, &domain.RemoteServiceError{Provider: provider, Message: fmt.Sprintf("row %d has %d columns, cost expected at %d", i, len(raw), layout.cost)}
		}
		cost, err := toDecimal(raw[layout.cost])
		if err != nil {
			return nil, &domain.RemoteServiceError{Provider: provider, Message: fmt.Sprintf("row %d: %v", i, err), Err: err}
		}
		rows = append(rows, billing.AzureRow{
			Cost:          cost,
			ResourceGroup: cell(raw, layout.resourceGroup),
			Currency:      cell(raw, layout.currency),
		})
	}
	return rows, nil
}

// cell returns the string form of raw[i], or "" when absent or null.
func cell(raw []any, i int) string {
	if i < 0 || i >= len(raw) || raw[i] == nil {
		return ""
	}
	if s, ok := raw[i].(string); ok {
		return s
	}
	return fmt.Sprint(raw[i])
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		return decimal.NewFromString(n)
	case nil:
		return decimal.Zero, nil
	default:
		f, err := strconv.ParseFloat(fmt.Sprint(n), 64)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unsupported cost value %v (%T)", v, v)
		}
		return decimal.NewFromFloat(f), nil
	}
}
