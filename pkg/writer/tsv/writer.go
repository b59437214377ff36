// Package tsv serializes the retained-result set into the canonical
// tab-delimited synopsis and first-hits schemas.
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"pephit/pkg/core"
)

// synopsisColumns is the fixed canonical column set, written in this order.
var synopsisColumns = []string{
	"ResultID",
	"Dataset",
	"Scan",
	"Charge",
	"MH",
	"DelM_Da",
	"DelM_PPM",
	"Peptide",
	"Protein",
	"PrimaryScore",
	"SecondaryScore",
	"TertiaryScore",
	"Rank",
	"DeltaNormPrimary",
	"DeltaNormSecondary",
}

const qValueColumn = "QValue"

// SortCanonical puts the retained set into the deterministic final order:
// descending primary score, then scan, charge, and peptide. Sequential
// result IDs are assigned afterwards.
func SortCanonical(results []core.Retained) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if a.PrimaryScore != b.PrimaryScore {
			return a.PrimaryScore > b.PrimaryScore
		}
		if a.Scan != b.Scan {
			return a.Scan < b.Scan
		}
		if a.Charge != b.Charge {
			return a.Charge < b.Charge
		}
		return a.Peptide < b.Peptide
	})
	for i := range results {
		results[i].ResultID = i + 1
	}
}

// WriteSynopsis sorts, numbers, and serializes the retained set. The header
// line is always written first, even for an empty result set.
func WriteSynopsis(w io.Writer, results []core.Retained, includeQValue bool) error {
	SortCanonical(results)
	return write(w, results, includeQValue)
}

// WriteFirstHits serializes the best-per-charge result set using the same
// schema (without Q-values, which are estimated over the synopsis set only).
func WriteFirstHits(w io.Writer, results []core.Retained) error {
	SortCanonical(results)
	return write(w, results, false)
}

func write(w io.Writer, results []core.Retained, includeQValue bool) error {
	bw := bufio.NewWriter(w)

	cols := synopsisColumns
	if includeQValue {
		cols = append(append([]string{}, synopsisColumns...), qValueColumn)
	}
	if _, err := bw.WriteString(strings.Join(cols, "\t") + "\n"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := range results {
		r := &results[i]
		fields := []string{
			strconv.Itoa(r.ResultID),
			r.Dataset,
			strconv.Itoa(r.Scan),
			strconv.Itoa(r.Charge),
			formatFloat(r.MH, 4),
			formatFloat(r.DelMDa, 4),
			formatFloat(r.DelMPPM, 4),
			r.Peptide,
			r.Protein,
			formatFloat(r.PrimaryScore, 4),
			formatFloat(r.SecondaryScore, 4),
			formatFloat(r.TertiaryScore, 4),
			strconv.Itoa(r.RankPrimary),
			formatFloat(r.DeltaNormPrimary, 4),
			formatFloat(r.DeltaNormSecondary, 4),
		}
		if includeQValue {
			fields = append(fields, formatFloat(r.QValue, 6))
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return fmt.Errorf("failed to write result %d: %w", r.ResultID, err)
		}
	}

	return bw.Flush()
}

// formatFloat renders a value with fixed decimals; anything that rounds to
// zero at the output precision stays "0" so absent mass information is
// visibly absent rather than printed as "0.0000".
func formatFloat(v float64, decimals int) string {
	if core.RoundFloat(v, decimals) == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
