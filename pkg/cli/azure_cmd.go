package cli

import (
	"os"

	"github.com/spf13/cobra"

	"cloudsathi/pkg/cli/client"
)

func newAzureCmd(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "azure",
		Short: "Azure Cost Management",
	}
	cmd.AddCommand(newAzureCostsCmd(c))
	return cmd
}

func newAzureCostsCmd(c *client.Client) *cobra.Command {
	var dates dateFlags
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Azure actual cost grouped by resource group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := dates.validate(); err != nil {
				return err
			}
			var rep azureCostReport
			if err := c.GetJSON(cmd.Context(), "/api/azure/costs", dates.query(), &rep); err != nil {
				return err
			}
			return printResult(cmd, rep, func() {
				r := newRollup()
				for _, rg := range rep.CostsByResourceGroup {
					r.add(rg.ResourceGroup, rg.Amount, rg.Currency)
				}
				client.PrintTable(os.Stdout, []string{"resource group", "amount", "currency"}, r.rows())
				printTotal(rep.reportHeader)
			})
		},
	}
	dates.register(cmd)
	return cmd
}
