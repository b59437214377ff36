package cmd

import (
	"fmt"

	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"

	"pephit/pkg/core"
)

var modsCmd = &cobra.Command{
	Use:   "mods",
	Short: "Print the resolved modification catalog and symbol legend",
	Long: `Load a modification declaration file and print the resolved catalog:
one line per descriptor with its display symbol, name, monoisotopic mass
delta, target residues, and class. The symbols match those embedded in the
Peptide column of the synopsis output.`,
	RunE: runMods,
}

func runMods(cmd *cobra.Command, args []string) error {
	f, err := xopen.Ropen(modFile)
	if err != nil {
		return fmt.Errorf("failed to open modification file: %w", err)
	}
	defer f.Close()

	catalog, warnings, err := core.LoadModifications(f)
	if err != nil {
		return fmt.Errorf("failed to load modifications: %w", err)
	}
	for _, w := range warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	fmt.Printf("Symbol\tName\tMass\tTargets\tClass\n")
	for _, d := range catalog.Descriptors() {
		targets := d.Targets
		if targets == "" {
			targets = "-"
		}
		fmt.Printf("%c\t%s\t%.6f\t%s\t%s\n", d.Symbol, d.Name, d.Mass, targets, d.Class)
	}

	return nil
}
