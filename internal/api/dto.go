package api

import (
	"sort"

	"github.com/shopspring/decimal"

	"cloudsathi/internal/domain"
	"cloudsathi/internal/service/cur"
	"cloudsathi/internal/service/summary"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// ServiceCost is one AWS breakdown entry.
type ServiceCost struct {
	ServiceName string  `json:"service_name"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// ResourceGroupCost is one Azure breakdown entry.
type ResourceGroupCost struct {
	ResourceGroup string  `json:"resource_group"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// LabelCost is one entry of a normalized CUR report.
type LabelCost struct {
	Label    string  `json:"label"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type reportHeader struct {
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	TotalCost       float64 `json:"total_cost"`
	Currency        string  `json:"currency"`
	TimePeriodStart *string `json:"time_period_start"`
	TimePeriodEnd   *string `json:"time_period_end"`
}

// AWSCostResponse is returned by GET /api/aws/costs.
type AWSCostResponse struct {
	reportHeader
	CostsByService []ServiceCost `json:"costs_by_service"`
}

// AzureCostResponse is returned by GET /api/azure/costs.
type AzureCostResponse struct {
	reportHeader
	CostsByResourceGroup []ResourceGroupCost `json:"costs_by_resource_group"`
}

// CURNormalizedResponse is returned by the CUR endpoints with view=normalized.
type CURNormalizedResponse struct {
	reportHeader
	Report string      `json:"report"`
	Limit  int         `json:"limit"`
	Costs  []LabelCost `json:"costs"`
}

// SummaryResponse is returned by GET /api/costs/summary.
type SummaryResponse struct {
	StartDate string             `json:"start_date"`
	EndDate   string             `json:"end_date"`
	AWS       AWSCostResponse    `json:"aws"`
	Azure     AzureCostResponse  `json:"azure"`
	Subtotals []CurrencySubtotal `json:"subtotals"`
}

// CurrencySubtotal sums both providers for one currency.
type CurrencySubtotal struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// RecommendationRequest is the body of POST /api/recommendations.
type RecommendationRequest struct {
	CostData map[string]any `json:"cost_data"`
}

// RecommendationResponse is returned by POST /api/recommendations.
type RecommendationResponse struct {
	Recommendation string `json:"recommendation"`
}

// HealthResponse is returned by /health and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// === Mapping helpers ===

func amount(d decimal.Decimal) float64 { return d.InexactFloat64() }

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func headerToAPI(r *domain.CostReport) reportHeader {
	return reportHeader{
		StartDate:       r.StartDate.Format(domain.DateLayout),
		EndDate:         r.EndDate.Format(domain.DateLayout),
		TotalCost:       amount(r.TotalCost),
		Currency:        r.Currency,
		TimePeriodStart: optionalString(r.PeriodStart),
		TimePeriodEnd:   optionalString(r.PeriodEnd),
	}
}

func awsReportToAPI(r *domain.CostReport) AWSCostResponse {
	out := AWSCostResponse{reportHeader: headerToAPI(r), CostsByService: make([]ServiceCost, 0, len(r.Breakdown))}
	for _, rec := range r.Breakdown {
		out.CostsByService = append(out.CostsByService, ServiceCost{
			ServiceName: rec.Label,
			Amount:      amount(rec.Amount),
			Currency:    rec.Currency,
		})
	}
	return out
}

func azureReportToAPI(r *domain.CostReport) AzureCostResponse {
	out := AzureCostResponse{reportHeader: headerToAPI(r), CostsByResourceGroup: make([]ResourceGroupCost, 0, len(r.Breakdown))}
	for _, rec := range r.Breakdown {
		out.CostsByResourceGroup = append(out.CostsByResourceGroup, ResourceGroupCost{
			ResourceGroup: rec.Label,
			Amount:        amount(rec.Amount),
			Currency:      rec.Currency,
		})
	}
	return out
}

func curNormalizedToAPI(rep *cur.Report, r *domain.CostReport) CURNormalizedResponse {
	out := CURNormalizedResponse{
		reportHeader: headerToAPI(r),
		Report:       rep.Name,
		Limit:        rep.Limit,
		Costs:        make([]LabelCost, 0, len(r.Breakdown)),
	}
	for _, rec := range r.Breakdown {
		out.Costs = append(out.Costs, LabelCost{Label: rec.Label, Amount: amount(rec.Amount), Currency: rec.Currency})
	}
	return out
}

// curRecordsToAPI returns rows as-is; a nil Record value encodes as null.
func curRecordsToAPI(rs *domain.ResultSet) []domain.Record {
	if rs == nil || rs.Records == nil {
		return []domain.Record{}
	}
	return rs.Records
}

func summaryToAPI(s *summary.Summary) SummaryResponse {
	out := SummaryResponse{
		StartDate: s.Range.Start.Format(domain.DateLayout),
		EndDate:   s.Range.End.Format(domain.DateLayout),
		AWS:       awsReportToAPI(s.AWS),
		Azure:     azureReportToAPI(s.Azure),
		Subtotals: make([]CurrencySubtotal, 0, len(s.Subtotals)),
	}
	for currency, total := range s.Subtotals {
		out.Subtotals = append(out.Subtotals, CurrencySubtotal{Currency: currency, Amount: amount(total)})
	}
	sort.Slice(out.Subtotals, func(i, j int) bool { return out.Subtotals[i].Currency < out.Subtotals[j].Currency })
	return out
}
