package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cloudsathi/pkg/cli/client"
)

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// printResult writes v as JSON, or calls table for table output.
func printResult(cmd *cobra.Command, v any, table func()) error {
	if getOutputFormat(cmd) == "json" {
		return client.PrintJSON(os.Stdout, v)
	}
	table()
	return nil
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// dateFlags registers --start-date/-s and --end-date/-e with a default window
// of the last 30 days.
type dateFlags struct {
	start string
	end   string
}

const defaultWindowDays = 30

func (d *dateFlags) register(cmd *cobra.Command) {
	today := time.Now()
	cmd.Flags().StringVarP(&d.start, "start-date", "s", today.AddDate(0, 0, -defaultWindowDays).Format(time.DateOnly), "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&d.end, "end-date", "e", today.Format(time.DateOnly), "End date (YYYY-MM-DD)")
}

// validate checks the date format locally so typos fail before a round trip.
func (d *dateFlags) validate() error {
	for name, v := range map[string]string{"start-date": d.start, "end-date": d.end} {
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			return fmt.Errorf("invalid --%s %q: use YYYY-MM-DD", name, v)
		}
	}
	return nil
}
