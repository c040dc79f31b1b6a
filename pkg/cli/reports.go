package cli

import (
	"net/url"
	"sort"

	"github.com/shopspring/decimal"
)

// Response shapes of the cost endpoints. Amounts decode into decimal so the
// table footers add up exactly.

type reportHeader struct {
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Currency        string          `json:"currency"`
	TimePeriodStart *string         `json:"time_period_start"`
	TimePeriodEnd   *string         `json:"time_period_end"`
}

type serviceCost struct {
	ServiceName string          `json:"service_name"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

type resourceGroupCost struct {
	ResourceGroup string          `json:"resource_group"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

type labelCost struct {
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type awsCostReport struct {
	reportHeader
	CostsByService []serviceCost `json:"costs_by_service"`
}

type azureCostReport struct {
	reportHeader
	CostsByResourceGroup []resourceGroupCost `json:"costs_by_resource_group"`
}

type curNormalizedReport struct {
	reportHeader
	Report string      `json:"report"`
	Limit  int         `json:"limit"`
	Costs  []labelCost `json:"costs"`
}

type currencySubtotal struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type costSummary struct {
	StartDate string             `json:"start_date"`
	EndDate   string             `json:"end_date"`
	AWS       awsCostReport      `json:"aws"`
	Azure     azureCostReport    `json:"azure"`
	Subtotals []currencySubtotal `json:"subtotals"`
}

func (d *dateFlags) query() url.Values {
	return url.Values{"start_date": {d.start}, "end_date": {d.end}}
}

// rollup sums amounts per label so the daily breakdown prints as one line
// per service or resource group, largest first.
type rollup struct {
	order  []string
	totals map[string]decimal.Decimal
	curr   map[string]string
}

func newRollup() *rollup {
	return &rollup{totals: map[string]decimal.Decimal{}, curr: map[string]string{}}
}

func (r *rollup) add(label string, amount decimal.Decimal, currency string) {
	if _, ok := r.totals[label]; !ok {
		r.order = append(r.order, label)
		r.curr[label] = currency
	}
	r.totals[label] = r.totals[label].Add(amount)
}

func (r *rollup) rows() [][]string {
	labels := append([]string(nil), r.order...)
	sort.SliceStable(labels, func(i, j int) bool {
		return r.totals[labels[i]].GreaterThan(r.totals[labels[j]])
	})
	rows := make([][]string, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []string{l, formatAmount(r.totals[l]), r.curr[l]})
	}
	return rows
}
