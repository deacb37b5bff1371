// Command uboost trains uniformity-aware boosting classifiers and reports how
// flat their efficiency is along chosen variables.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "uboost: %v\n", err)
		os.Exit(1)
	}
}
