package main

import (
	"os"

	"github.com/optrade/copyledger/cmd/copyledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
