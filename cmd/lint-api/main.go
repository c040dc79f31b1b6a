// Command lint-api checks an OpenAPI 3.x document against the cloudsathi API
// conventions.
//
// Usage:
//
//	go run ./cmd/lint-api [flags] [openapi.json]
//
// With no argument the document embedded in the server is checked.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"cloudsathi/internal/api"
	"cloudsathi/pkg/apilint"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("lint-api", pflag.ContinueOnError)
	severity := fs.String("severity", "", "minimum severity to report: error, warning, info (default: all)")
	configPath := fs.String("config", "", "path to an .apilint.yaml with per-rule overrides")
	listRules := fs.Bool("list-rules", false, "print the rules and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *listRules {
		for _, r := range apilint.RegisteredRules() {
			fmt.Printf("%s  %-7s  %s\n", r.ID(), r.DefaultSeverity(), r.Description())
		}
		return 0
	}

	var (
		linter *apilint.Linter
		err    error
		name   = "openapi.json (embedded)"
	)
	if fs.NArg() > 0 {
		name = fs.Arg(0)
		linter, err = apilint.New(name)
	} else {
		linter, err = apilint.NewFromData(name, api.OpenAPIDocument())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	var cfg *apilint.Config
	if *configPath != "" {
		if cfg, err = apilint.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
	}

	violations := linter.RunWithConfig(cfg)

	if *severity != "" {
		sev := apilint.Severity(*severity)
		switch sev {
		case apilint.SeverityError, apilint.SeverityWarning, apilint.SeverityInfo:
			violations = apilint.Filter(violations, sev)
		default:
			fmt.Fprintf(os.Stderr, "error: unknown severity %q (use: error, warning, info)\n", *severity)
			return 2
		}
	}

	for _, v := range violations {
		fmt.Println(v)
	}

	if len(violations) == 0 {
		fmt.Printf("%s: ok (0 violations)\n", name)
	} else {
		fmt.Printf("\n%d violation(s) found\n", len(violations))
	}

	if apilint.HasErrors(violations) {
		return 1
	}
	return 0
}
