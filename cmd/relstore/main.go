// Command relstore is the CLI for the relstore record store.
package main

import (
	"os"

	"github.com/relstack-labs/relstore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
