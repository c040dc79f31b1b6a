// Package billing reshapes provider-specific cost rows into domain.CostReport.
package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cloudsathi/internal/domain"
)

// UnassignedResourceGroup labels Azure costs with no resource group.
const UnassignedResourceGroup = "Unassigned"

// ProviderResult is one of CostExplorerResult, AzureResult or CURResult.
type ProviderResult interface {
	provider() string
}

// GroupCost is a single Cost Explorer group within a time bucket.
type GroupCost struct {
	Key    string
	Amount decimal.Decimal
	Unit   string
}

// TimeBucket is one ResultsByTime entry.
type TimeBucket struct {
	Start  string
	End    string
	Groups []GroupCost
}

// CostExplorerResult holds daily service-grouped costs.
type CostExplorerResult struct {
	Buckets []TimeBucket
}

func (CostExplorerResult) provider() string { return "aws" }

// AzureRow is one (cost, resource group, currency) row from a usage query.
// An empty ResourceGroup means the service returned none.
type AzureRow struct {
	Cost          decimal.Decimal
	ResourceGroup string
	Currency      string
}

// AzureResult holds rows from a Cost Management usage query.
type AzureResult struct {
	Rows []AzureRow
}

func (AzureResult) provider() string { return "azure" }

// CURResult holds Athena records already grouped, ordered and limited in SQL.
// The first present column among AmountColumns supplies each amount.
type CURResult struct {
	Records        []domain.Record
	LabelColumns   []string
	AmountColumns  []string
	CurrencyColumn string
}

func (CURResult) provider() string { return "athena" }

// Normalize converts a provider result into a CostReport for r.
func Normalize(r domain.DateRange, result ProviderResult) (*domain.CostReport, error) {
	report := &domain.CostReport{
		StartDate:   r.Start,
		EndDate:     r.End,
		Currency:    domain.DefaultCurrency,
		PeriodStart: r.Start.Format(domain.DateLayout),
		PeriodEnd:   r.End.Format(domain.DateLayout),
	}

	var records []domain.CostRecord
	switch res := result.(type) {
	case CostExplorerResult:
		records = normalizeCostExplorer(res, report)
	case AzureResult:
		records = normalizeAzure(res, report)
	case CURResult:
		var err error
		if records, err = normalizeCUR(res, report); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported provider result %T", result)
	}

	report.Breakdown = FilterPositive(records)
	report.TotalCost = Total(report.Breakdown)
	return report, nil
}

func normalizeCostExplorer(res CostExplorerResult, report *domain.CostReport) []domain.CostRecord {
	if n := len(res.Buckets); n > 0 {
		if res.Buckets[0].Start != "" {
			report.PeriodStart = res.Buckets[0].Start
		}
		if res.Buckets[n-1].End != "" {
			report.PeriodEnd = res.Buckets[n-1].End
		}
	}
	var records []domain.CostRecord
	for _, b := range res.Buckets {
		for _, g := range b.Groups {
			unit := g.Unit
			if unit == "" {
				unit = domain.DefaultCurrency
			}
			if !g.Amount.IsPositive() {
				continue
			}
			records = append(records, domain.CostRecord{Label: g.Key, Amount: g.Amount, Currency: unit})
			report.Currency = unit
		}
	}
	return records
}

// normalizeAzure applies the first currency observed to every record. Mixed
// currencies within one subscription are not converted.
func normalizeAzure(res AzureResult, report *domain.CostReport) []domain.CostRecord {
	for _, row := range res.Rows {
		if row.Currency != "" {
			report.Currency = row.Currency
			break
		}
	}
	records := make([]domain.CostRecord, 0, len(res.Rows))
	for _, row := range res.Rows {
		label := strings.TrimSpace(row.ResourceGroup)
		if label == "" {
			label = UnassignedResourceGroup
		}
		records = append(records, domain.CostRecord{Label: label, Amount: row.Cost, Currency: report.Currency})
	}
	return records
}

func normalizeCUR(res CURResult, report *domain.CostReport) ([]domain.CostRecord, error) {
	records := make([]domain.CostRecord, 0, len(res.Records))
	currencySet := false
	for i, rec := range res.Records {
		raw, ok := firstPresent(rec, res.AmountColumns)
		if !ok {
			return nil, &domain.RemoteServiceError{
				Provider: "athena",
				Message:  fmt.Sprintf("row %d has no value for any of %v", i, res.AmountColumns),
			}
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, &domain.RemoteServiceError{
				Provider: "athena",
				Message:  fmt.Sprintf("row %d: unparsable amount %q", i, raw),
				Err:      err,
			}
		}
		currency, ok := rec.Get(res.CurrencyColumn)
		if !ok || currency == "" {
			currency = domain.DefaultCurrency
		}
		if !currencySet {
			report.Currency = currency
			currencySet = true
		}
		records = append(records, domain.CostRecord{Label: label(rec, res.LabelColumns), Amount: amount, Currency: currency})
	}
	return records, nil
}

func firstPresent(rec domain.Record, columns []string) (string, bool) {
	for _, c := range columns {
		if v, ok := rec.Get(c); ok {
			return v, true
		}
	}
	return "", false
}

func label(rec domain.Record, columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		if v, ok := rec.Get(c); ok && v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return UnassignedResourceGroup
	}
	return strings.Join(parts, " / ")
}

// FilterPositive drops records whose amount is zero or negative. It is
// idempotent and never mutates its input.
func FilterPositive(records []domain.CostRecord) []domain.CostRecord {
	out := make([]domain.CostRecord, 0, len(records))
	for _, r := range records {
		if r.Amount.IsPositive() {
			out = append(out, r)
		}
	}
	return out
}

// Total sums the amounts of records.
func Total(records []domain.CostRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// SubtotalsByCurrency sums each currency separately. No conversion is attempted.
func SubtotalsByCurrency(reports ...*domain.CostReport) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		for _, r := range rep.Breakdown {
			out[r.Currency] = out[r.Currency].Add(r.Amount)
		}
	}
	return out
}
