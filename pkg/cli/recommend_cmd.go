package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cloudsathi/pkg/cli/client"
)

type recommendFlags struct {
	costData string
	ec2      float64
	s3       float64
	rds      float64
	lambda   float64
}

func newRecommendCmd(c *client.Client) *cobra.Command {
	var f recommendFlags
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Ask for a cost optimization suggestion",
		Long: `Send cost data to the recommendation endpoint.

Cost data comes from --cost-data (a JSON object or a path to a JSON file),
from the per-service flags, or from stdin when it is piped.`,
		Example: `  cloudsathi recommend --ec2 120.5 --s3 40
  cloudsathi recommend --cost-data '{"EC2": 120.5}'
  cloudsathi aws costs -o json | jq '...' | cloudsathi recommend`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := f.resolve(cmd, os.Stdin)
			if err != nil {
				return err
			}
			var resp struct {
				Recommendation string `json:"recommendation"`
			}
			if err := c.PostJSON(cmd.Context(), "/api/recommendations", map[string]any{"cost_data": data}, &resp); err != nil {
				return err
			}
			return printResult(cmd, resp, func() {
				_, _ = fmt.Fprintln(os.Stdout, resp.Recommendation)
			})
		},
	}
	cmd.Flags().StringVarP(&f.costData, "cost-data", "d", "", "Cost data as a JSON object or a path to a JSON file")
	cmd.Flags().Float64Var(&f.ec2, "ec2", 0, "EC2 spend")
	cmd.Flags().Float64Var(&f.s3, "s3", 0, "S3 spend")
	cmd.Flags().Float64Var(&f.rds, "rds", 0, "RDS spend")
	cmd.Flags().Float64Var(&f.lambda, "lambda", 0, "Lambda spend")
	cmd.MarkFlagsMutuallyExclusive("cost-data", "ec2")
	cmd.MarkFlagsMutuallyExclusive("cost-data", "s3")
	cmd.MarkFlagsMutuallyExclusive("cost-data", "rds")
	cmd.MarkFlagsMutuallyExclusive("cost-data", "lambda")
	return cmd
}

// resolve builds the cost_data object from flags, a file, or piped stdin.
func (f *recommendFlags) resolve(cmd *cobra.Command, stdin *os.File) (map[string]any, error) {
	if f.costData != "" {
		raw := []byte(f.costData)
		if !strings.HasPrefix(strings.TrimSpace(f.costData), "{") {
			b, err := os.ReadFile(f.costData)
			if err != nil {
				return nil, fmt.Errorf("read cost data: %w", err)
			}
			raw = b
		}
		return decodeCostData(raw)
	}

	data := map[string]any{}
	for _, s := range []struct {
		flag, key string
		v         float64
	}{
		{"ec2", "EC2", f.ec2},
		{"s3", "S3", f.s3},
		{"rds", "RDS", f.rds},
		{"lambda", "Lambda", f.lambda},
	} {
		if cmd.Flags().Changed(s.flag) {
			data[s.key] = s.v
		}
	}
	if len(data) > 0 {
		return data, nil
	}

	if stdin != nil && !client.IsTerminal(stdin) {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			return decodeCostData(raw)
		}
	}
	return nil, fmt.Errorf("no cost data: use --cost-data, --ec2/--s3/--rds/--lambda, or pipe JSON on stdin")
}

func decodeCostData(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("cost data must be a JSON object: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("cost data must be a JSON object")
	}
	return data, nil
}
