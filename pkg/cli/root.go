package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cloudsathi/pkg/cli/client"
)

var (
	version = "dev"
	commit  = "none"
)

const defaultAPIURL = "http://localhost:8000"

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]any{
				"error": err.Error(),
			}
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
				errObj["kind"] = apiErr.Kind
			}
			_ = client.PrintJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		apiURL  string
		token   string
		output  string
		profile string
		timeout string
	)

	c := client.NewClient(defaultAPIURL, "", client.DefaultTimeout)

	rootCmd := &cobra.Command{
		Use:           "cloudsathi",
		Short:         "CloudSathi cloud cost CLI",
		Long:          "Command-line interface for the CloudSathi cost API: AWS and Azure spend, CUR reports and recommendations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadOrNewUserConfig()
			if err != nil {
				return err
			}
			p, err := cfg.ActiveProfile(profile)
			if err != nil {
				return err
			}

			// flag > env > profile > default
			flags := cmd.Root().PersistentFlags()
			resolve := func(dst *string, flag, env, fromProfile string) {
				if flags.Changed(flag) {
					return
				}
				if v := os.Getenv(env); v != "" {
					*dst = v
				} else if fromProfile != "" {
					*dst = fromProfile
				}
			}
			resolve(&apiURL, "api-url", "CLOUDSATHI_API_URL", p.APIURL)
			resolve(&token, "token", "CLOUDSATHI_TOKEN", p.Token)
			resolve(&output, "output", "CLOUDSATHI_OUTPUT", p.Output)
			resolve(&timeout, "timeout", "CLOUDSATHI_TIMEOUT", p.Timeout)

			if err := validateOutputFormat(output); err != nil {
				return err
			}
			if err := validateHostURL(apiURL); err != nil {
				return err
			}
			d, err := parseTimeout(timeout)
			if err != nil {
				return err
			}

			// Commands hold c, so it is updated in place.
			*c = *client.NewClient(apiURL, token, d)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultAPIURL, "CloudSathi API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token for authentication")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", client.DefaultTimeout.String(), "HTTP timeout; CUR queries can take minutes")

	rootCmd.AddCommand(newAWSCmd(c))
	rootCmd.AddCommand(newAzureCmd(c))
	rootCmd.AddCommand(newCostsCmd(c))
	rootCmd.AddCommand(newRecommendCmd(c))
	rootCmd.AddCommand(newHealthCmd(c))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
