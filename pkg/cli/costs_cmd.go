package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cloudsathi/pkg/cli/client"
)

func newCostsCmd(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Cross-provider cost views",
	}
	cmd.AddCommand(newCostsSummaryCmd(c))
	return cmd
}

func newCostsSummaryCmd(c *client.Client) *cobra.Command {
	var dates dateFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "AWS and Azure totals with per-currency subtotals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := dates.validate(); err != nil {
				return err
			}
			var sum costSummary
			if err := c.GetJSON(cmd.Context(), "/api/costs/summary", dates.query(), &sum); err != nil {
				return err
			}
			return printResult(cmd, sum, func() {
				client.PrintTable(os.Stdout, []string{"provider", "total", "currency"}, [][]string{
					{"aws", formatAmount(sum.AWS.TotalCost), sum.AWS.Currency},
					{"azure", formatAmount(sum.Azure.TotalCost), sum.Azure.Currency},
				})
				_, _ = fmt.Fprintf(os.Stdout, "\nSubtotals (%s to %s)\n", sum.StartDate, sum.EndDate)
				rows := make([][]string, 0, len(sum.Subtotals))
				for _, st := range sum.Subtotals {
					rows = append(rows, []string{st.Currency, formatAmount(st.Amount)})
				}
				client.PrintTable(os.Stdout, []string{"currency", "amount"}, rows)
			})
		},
	}
	dates.register(cmd)
	return cmd
}
