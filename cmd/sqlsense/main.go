// Package main provides the sqlsense CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlsense/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
