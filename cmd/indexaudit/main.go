// Package main provides the entry point for the indexaudit CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/indexaudit/cmd/indexaudit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
