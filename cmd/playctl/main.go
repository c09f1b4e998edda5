// Command playctl is a command-line client for a running search playground.
//
// Usage:
//
//	playctl collections
//	playctl sync [--fail-fast]
//	playctl search users alice
//	playctl bench --duration 30s --concurrency 10
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
