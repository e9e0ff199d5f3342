// Command courierctl seeds demo data, issues tokens and runs reconciliation.
package main

import (
	"os"

	"courier/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
