// Package main is the entry point for the cloudsathi CLI binary.
package main

import (
	"os"

	cli "cloudsathi/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
