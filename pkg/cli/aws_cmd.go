package cli

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"cloudsathi/pkg/cli/client"
)

func newAWSCmd(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aws",
		Short: "AWS Cost Explorer and Cost & Usage Report",
	}
	cmd.AddCommand(newAWSCostsCmd(c))
	cmd.AddCommand(newCURCmd(c))
	return cmd
}

func newAWSCostsCmd(c *client.Client) *cobra.Command {
	var dates dateFlags
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "AWS costs grouped by service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := dates.validate(); err != nil {
				return err
			}
			var rep awsCostReport
			if err := c.GetJSON(cmd.Context(), "/api/aws/costs", dates.query(), &rep); err != nil {
				return err
			}
			return printResult(cmd, rep, func() {
				r := newRollup()
				for _, sc := range rep.CostsByService {
					r.add(sc.ServiceName, sc.Amount, sc.Currency)
				}
				client.PrintTable(os.Stdout, []string{"service", "amount", "currency"}, r.rows())
				printTotal(rep.reportHeader)
			})
		},
	}
	dates.register(cmd)
	return cmd
}

func newCURCmd(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cur",
		Short: "Canned Cost & Usage Report queries run through Athena",
	}
	cmd.AddCommand(newCURReportCmd(c, "top-resources", "Most expensive resources"))
	cmd.AddCommand(newCURReportCmd(c, "usage-by-operation", "Cost grouped by operation"))
	return cmd
}

func newCURReportCmd(c *client.Client, name, short string) *cobra.Command {
	var (
		dates      dateFlags
		limit      int
		normalized bool
	)
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if cmd.Flags().Changed("limit") {
				q.Set("limit", strconv.Itoa(limit))
			}
			startSet, endSet := cmd.Flags().Changed("start-date"), cmd.Flags().Changed("end-date")
			if startSet != endSet {
				return fmt.Errorf("--start-date and --end-date must be given together")
			}
			if startSet {
				if err := dates.validate(); err != nil {
					return err
				}
				q.Set("start_date", dates.start)
				q.Set("end_date", dates.end)
			}
			path := "/api/aws/cur/" + name

			if normalized {
				q.Set("view", "normalized")
				var rep curNormalizedReport
				if err := c.GetJSON(cmd.Context(), path, q, &rep); err != nil {
					return err
				}
				return printResult(cmd, rep, func() {
					rows := make([][]string, 0, len(rep.Costs))
					for _, lc := range rep.Costs {
						rows = append(rows, []string{lc.Label, formatAmount(lc.Amount), lc.Currency})
					}
					client.PrintTable(os.Stdout, []string{"label", "amount", "currency"}, rows)
					printTotal(rep.reportHeader)
				})
			}

			var records []map[string]*string
			if err := c.GetJSON(cmd.Context(), path, q, &records); err != nil {
				return err
			}
			return printResult(cmd, records, func() {
				columns, rows := recordTable(records)
				client.PrintTable(os.Stdout, columns, rows)
			})
		},
	}
	dates.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows (1-1000)")
	cmd.Flags().BoolVar(&normalized, "normalized", false, "Return a cost report instead of raw rows")
	return cmd
}

// recordTable lays out CUR rows with columns sorted by name. NULL prints as "-".
func recordTable(records []map[string]*string) ([]string, [][]string) {
	seen := map[string]bool{}
	var columns []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			if v := rec[col]; v != nil {
				row[i] = *v
			} else {
				row[i] = "-"
			}
		}
		rows = append(rows, row)
	}
	return columns, rows
}

func printTotal(h reportHeader) {
	_, _ = fmt.Fprintf(os.Stdout, "\nTotal %s %s (%s to %s)\n", formatAmount(h.TotalCost), h.Currency, h.StartDate, h.EndDate)
}
