// Command settlectl runs settlement maintenance tasks against the database:
// ledger reconciliation, orphaned proof cleanup, token issuing and migrations.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; FIELDOPS_* variables may come from the shell.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
