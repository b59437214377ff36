// pephit - search-result normalization tool
package main

import (
	"fmt"
	"os"

	"pephit/cmd/pephit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
