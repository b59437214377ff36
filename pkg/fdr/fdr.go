// Package fdr computes decoy-based false-discovery rates and monotonic
// Q-values over the retained-result list.
package fdr

import (
	"sort"
	"strings"

	"pephit/pkg/core"
)

// DefaultDecoyPrefix is the conventional protein-name prefix marking decoy
// database entries.
const DefaultDecoyPrefix = "XXX_"

// MarkDecoys sets the decoy flag from the protein-name convention: the
// configured prefix, or an explicit reverse marker. Flags already set by the
// reader (an engine decoy column) are preserved.
func MarkDecoys(list []core.Retained, decoyPrefix string) {
	if decoyPrefix == "" {
		decoyPrefix = DefaultDecoyPrefix
	}
	for i := range list {
		if list[i].Decoy {
			continue
		}
		protein := list[i].Protein
		if strings.HasPrefix(protein, decoyPrefix) ||
			strings.HasPrefix(strings.ToLower(protein), "reversed_") {
			list[i].Decoy = true
		}
	}
}

// Estimate sorts the retained list by descending primary score (ties broken
// by scan, peptide, then protein for determinism) and fills FDR and Q-value
// on every entry. FDR at each position is decoy/forward over the running
// counts, defaulting to 1 while no forward identification has been seen.
// The Q-value pass walks worst to best, taking the running minimum FDR,
// seeded from the worst entry's own FDR capped at 1.
func Estimate(list []core.Retained) {
	if len(list) == 0 {
		return
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := &list[i], &list[j]
		if a.PrimaryScore != b.PrimaryScore {
			return a.PrimaryScore > b.PrimaryScore
		}
		if a.Scan != b.Scan {
			return a.Scan < b.Scan
		}
		if a.Peptide != b.Peptide {
			return a.Peptide < b.Peptide
		}
		return a.Protein < b.Protein
	})

	forward, decoy := 0, 0
	for i := range list {
		if list[i].Decoy {
			decoy++
		} else {
			forward++
		}
		if forward == 0 {
			list[i].FDR = 1
		} else {
			list[i].FDR = float64(decoy) / float64(forward)
		}
	}

	q := list[len(list)-1].FDR
	if q > 1 {
		q = 1
	}
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].FDR < q {
			q = list[i].FDR
		}
		list[i].QValue = q
	}
}

// Counts tallies forward and decoy identifications.
func Counts(list []core.Retained) (forward, decoy int) {
	for i := range list {
		if list[i].Decoy {
			decoy++
		} else {
			forward++
		}
	}
	return forward, decoy
}
