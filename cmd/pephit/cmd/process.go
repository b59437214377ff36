package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pephit/pkg/core"
	"pephit/pkg/filter"
	"pephit/pkg/pipeline"
	"pephit/pkg/rank"
	"pephit/pkg/reader/precursor"
	"pephit/pkg/report"
	"pephit/pkg/writer/sqlite"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Normalize a search-result file into the canonical schema",
	Long: `Normalize a tool-native tab-delimited results file into the canonical
synopsis schema, with optional first-hits and SQLite outputs.

Examples:
  # Normalize a turbo-style results file with a modification catalog
  pephit process --in results.txt --tool turbo --mods mods.txt --out results_syn.txt

  # Threshold-union filtering plus Q-value estimation and first-hits output
  pephit process --in results.txt.gz --tool tandem --mods mods.xml \
    --min-primary 20 --max-secondary 0.01 --qvalues \
    --out syn.txt --first-hits fht.txt

  # Correct C13 isotope errors using a precursor side file
  pephit process --in results.txt --tool turbo --precursors precursors.txt \
    --c13 --out syn.txt`,
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	tool, err := core.ToolByName(toolName)
	if err != nil {
		return err
	}

	comparator := rank.ByPrimary
	switch rankBy {
	case "primary":
	case "secondary":
		comparator = rank.BySecondary
	default:
		return fmt.Errorf("invalid --rank-by %q, must be primary or secondary", rankBy)
	}

	// Load modification catalog
	var catalog *core.ModCatalog
	if modFile != "" {
		f, err := xopen.Ropen(modFile)
		if err != nil {
			return fmt.Errorf("failed to open modification file: %w", err)
		}
		var warnings []string
		catalog, warnings, err = core.LoadModifications(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to load modifications: %w", err)
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "%s %s\n", yellow("Warning:"), w)
		}
		fmt.Printf("Loaded %d modification definitions\n", catalog.Len())
	}

	// Load precursor side file
	var precursors precursor.Map
	if precursorFile != "" {
		f, err := xopen.Ropen(precursorFile)
		if err != nil {
			return fmt.Errorf("failed to open precursor file: %w", err)
		}
		precursors, err = precursor.Load(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to load precursor file: %w", err)
		}
		fmt.Printf("Loaded %d precursor entries\n", len(precursors))
	}

	in, err := xopen.Ropen(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer in.Close()

	synOut, err := os.Create(synopsisFile)
	if err != nil {
		return fmt.Errorf("failed to create synopsis file: %w", err)
	}
	defer synOut.Close()

	var fhOut *os.File
	if firstHitsFile != "" {
		fhOut, err = os.Create(firstHitsFile)
		if err != nil {
			return fmt.Errorf("failed to create first-hits file: %w", err)
		}
		defer fhOut.Close()
	}

	thresholds := thresholdsFromFlags(cmd.Flags())

	// Stop gracefully on interrupt; partial output stays on disk.
	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(stop)
	}()
	defer signal.Stop(sigCh)

	opts := pipeline.Options{
		Tool:           tool,
		Catalog:        catalog,
		Precursors:     precursors,
		DefaultDataset: datasetName,
		Thresholds:     thresholds,
		Comparator:     comparator,
		Epsilon:        scoreEpsilon,
		ComputeQValues: computeQValues,
		DecoyPrefix:    decoyPrefix,
		CorrectC13:     correctC13,
		Stop:           stop,
	}

	fmt.Printf("Processing %s (%s)...\n", inputFile, tool.Name)
	// Keep a nil *os.File from becoming a non-nil io.Writer.
	var fhWriter io.Writer
	if fhOut != nil {
		fhWriter = fhOut
	}
	res := pipeline.Run(in, synOut, fhWriter, opts)

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "%s %s\n", yellow("Warning:"), w)
	}
	for _, e := range res.RowErrors {
		fmt.Fprintf(os.Stderr, "%s %s\n", red("Row error:"), e)
	}

	if sqliteFile != "" && res.Success {
		if err := writeSqlite(tool, catalog, res); err != nil {
			return err
		}
	}

	if res.Aborted {
		fmt.Fprintf(os.Stderr, "%s\n", red("Aborted; partial output retained"))
	}
	if !res.Success {
		return fmt.Errorf("processing failed with %d error(s)", len(res.RowErrors))
	}

	fmt.Printf("\n%s\n", bold("Processing complete"))
	fmt.Printf("Rows read: %d\n", res.Rows)
	if fhOut != nil {
		fmt.Printf("First hits: %d\n", res.FirstHits)
	}
	fmt.Print(report.Summarize(res.PPMErrors, res.Forward, res.Decoy))
	fmt.Printf("Output: %s\n", synopsisFile)

	return nil
}

// thresholdsFromFlags enables each metric only when its flag was set
// explicitly, so a legitimate threshold of exactly 0 still works.
func thresholdsFromFlags(flags *pflag.FlagSet) filter.Thresholds {
	return filter.Thresholds{
		MinPrimary:   minPrimary,
		UsePrimary:   flags.Changed("min-primary"),
		MaxSecondary: maxSecondary,
		UseSecondary: flags.Changed("max-secondary"),
		MinTertiary:  minTertiary,
		UseTertiary:  flags.Changed("min-tertiary"),
	}
}

func writeSqlite(tool *core.ToolConfig, catalog *core.ModCatalog, res *pipeline.Result) error {
	w, err := sqlite.NewWriter(sqliteFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}

	if catalog != nil {
		if err := w.WriteLegend(catalog); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.WriteResults(res.RetainedSet); err != nil {
		w.Close()
		return err
	}
	if err := w.Finalize(tool.Name, res.Retained, res.Decoy); err != nil {
		return err
	}

	fmt.Printf("SQLite output: %s\n", sqliteFile)
	return nil
}
