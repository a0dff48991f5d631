// Command swapctl drives an openswapd daemon from the terminal: one-shot
// swaps, quotes, token lookups and wallet balances.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
