package main

import (
	"os"

	"github.com/dvloznov/finance-bot/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
