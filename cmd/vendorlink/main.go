package main

import (
	"os"

	"github.com/vendorlink/vendorlink/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
