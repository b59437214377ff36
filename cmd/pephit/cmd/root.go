// Package cmd provides CLI command implementations
package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"pephit/pkg/core"
)

var (
	// Flags for process command
	inputFile     string
	toolName      string
	modFile       string
	precursorFile string
	synopsisFile  string
	firstHitsFile string
	sqliteFile    string
	datasetName   string

	minPrimary   float64
	maxSecondary float64
	minTertiary  float64

	rankBy         string
	scoreEpsilon   float64
	computeQValues bool
	decoyPrefix    string
	correctC13     bool
)

var rootCmd = &cobra.Command{
	Use:   "pephit",
	Short: "pephit - peptide search-result normalization tool",
	Long: `pephit normalizes tabular peptide-identification results from third-party
search engines into a single canonical tab-delimited schema.

Per-row modification mentions are resolved against a modification catalog,
theoretical and observed masses are recomputed (with optional C13 isotope
correction), competing identifications per spectrum are ranked and filtered,
and decoy-based Q-values are estimated over the retained set.`,
	Version: "1.2.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(modsCmd)

	// Process command flags
	processCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input results file, tab-delimited, optionally gzipped (required)")
	processCmd.Flags().StringVarP(&toolName, "tool", "t", "", "Tool variant: "+strings.Join(core.ToolNames(), ", ")+" (required)")
	processCmd.Flags().StringVarP(&modFile, "mods", "m", "", "Modification declaration file (inline, XML, or key=value syntax)")
	processCmd.Flags().StringVar(&precursorFile, "precursors", "", "Precursor-ion side file keyed by (dataset, scan)")
	processCmd.Flags().StringVarP(&synopsisFile, "out", "o", "", "Synopsis output file (required)")
	processCmd.Flags().StringVar(&firstHitsFile, "first-hits", "", "First-hits output file (one row per scan and charge)")
	processCmd.Flags().StringVar(&sqliteFile, "sqlite", "", "Also write the synopsis set to a SQLite database")
	processCmd.Flags().StringVar(&datasetName, "dataset", "", "Dataset name for rows without a Dataset column")

	processCmd.Flags().Float64Var(&minPrimary, "min-primary", 0, "Retain rows with primary score >= this (unset = disabled)")
	processCmd.Flags().Float64Var(&maxSecondary, "max-secondary", 0, "Retain rows with secondary metric <= this (unset = disabled)")
	processCmd.Flags().Float64Var(&minTertiary, "min-tertiary", 0, "Retain rows with tertiary score >= this (unset = disabled)")

	processCmd.Flags().StringVar(&rankBy, "rank-by", "primary", "Score axis for ranking: primary or secondary")
	processCmd.Flags().Float64Var(&scoreEpsilon, "epsilon", 0, "Score-tie epsilon for rank assignment (0 = default)")
	processCmd.Flags().BoolVar(&computeQValues, "qvalues", false, "Estimate decoy-based FDR and Q-values")
	processCmd.Flags().StringVar(&decoyPrefix, "decoy-prefix", "XXX_", "Protein-name prefix marking decoy entries")
	processCmd.Flags().BoolVar(&correctC13, "c13", false, "Correct observed mass errors for C13 isotope selection")

	processCmd.MarkFlagRequired("in")
	processCmd.MarkFlagRequired("tool")
	processCmd.MarkFlagRequired("out")

	// Mods command flags
	modsCmd.Flags().StringVarP(&modFile, "mods", "m", "", "Modification declaration file (required)")
	modsCmd.MarkFlagRequired("mods")
}
