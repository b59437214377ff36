// Package report summarizes a finished run: identification counts and the
// distribution of observed mass errors.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Summary holds the run statistics printed after processing.
type Summary struct {
	Results int
	Forward int
	Decoy   int

	HavePPM   bool
	MeanPPM   float64
	MedianPPM float64
	P95AbsPPM float64
}

// Summarize computes the run summary. ppmErrors holds the observed delta
// masses (ppm) of results that carried precursor information.
func Summarize(ppmErrors []float64, forward, decoy int) Summary {
	s := Summary{
		Results: forward + decoy,
		Forward: forward,
		Decoy:   decoy,
	}

	if len(ppmErrors) == 0 {
		return s
	}

	sorted := make([]float64, len(ppmErrors))
	copy(sorted, ppmErrors)
	sort.Float64s(sorted)

	absSorted := make([]float64, len(ppmErrors))
	for i, v := range ppmErrors {
		absSorted[i] = math.Abs(v)
	}
	sort.Float64s(absSorted)

	s.HavePPM = true
	s.MeanPPM = stat.Mean(sorted, nil)
	s.MedianPPM = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.P95AbsPPM = stat.Quantile(0.95, stat.Empirical, absSorted, nil)

	return s
}

// String renders the summary as the multi-line report printed by the CLI.
func (s Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Retained results: %d\n", s.Results)
	fmt.Fprintf(&b, "Forward: %d, Decoy: %d\n", s.Forward, s.Decoy)
	if s.Decoy > 0 && s.Forward > 0 {
		fmt.Fprintf(&b, "Overall decoy fraction: %.4f\n", float64(s.Decoy)/float64(s.Forward))
	}
	if s.HavePPM {
		fmt.Fprintf(&b, "Mass error (ppm): mean %.2f, median %.2f, 95%% |ppm| %.2f\n",
			s.MeanPPM, s.MedianPPM, s.P95AbsPPM)
	}

	return b.String()
}
