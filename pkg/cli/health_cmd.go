package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"cloudsathi/pkg/cli/client"
)

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func newHealthCmd(c *client.Client) *cobra.Command {
	var ready bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the API is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !ready {
				var st healthStatus
				if err := c.GetJSON(cmd.Context(), "/health", nil, &st); err != nil {
					return err
				}
				return printResult(cmd, st, func() {
					_, _ = fmt.Fprintln(os.Stdout, st.Status)
				})
			}

			// /readyz answers 503 with the same body, so decode both.
			resp, err := c.Do(cmd.Context(), http.MethodGet, "/readyz", nil, nil)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
				return client.CheckError(resp)
			}
			body, err := client.ReadBody(resp)
			if err != nil {
				return err
			}
			var st healthStatus
			if err := json.Unmarshal(body, &st); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if err := printResult(cmd, st, func() {
				names := make([]string, 0, len(st.Checks))
				for name := range st.Checks {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					rows = append(rows, []string{name, st.Checks[name]})
				}
				_, _ = fmt.Fprintln(os.Stdout, st.Status)
				client.PrintTable(os.Stdout, []string{"check", "result"}, rows)
			}); err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("not ready")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ready, "ready", false, "Run the readiness checks instead of the liveness probe")
	return cmd
}
