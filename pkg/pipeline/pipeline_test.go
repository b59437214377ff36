package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"pephit/pkg/core"
	"pephit/pkg/filter"
)

const turboInput = "ScanNum\tChargeState\tXCorr\tDelCn\tReference\tPeptide\n" +
	"100\t2\t3.5\t0.40\tP12345\tK.PEPTIDE.R\n" +
	"100\t2\t2.1\t0.10\tXXX_P888\tK.PEPTIDK.R\n" +
	"100\t3\t1.8\t0.05\tP54321\tK.PEPTIDR.R\n" +
	"101\t2\t4.2\t0.50\tP67890\tK.SEQVENCE.K\n"

func runOpts(t *testing.T) Options {
	t.Helper()
	tool, err := core.ToolByName("turbo")
	if err != nil {
		t.Fatal(err)
	}
	return Options{
		Tool:    tool,
		Catalog: core.NewModCatalog(),
	}
}

func TestRunEndToEnd(t *testing.T) {
	var syn, fh bytes.Buffer
	opts := runOpts(t)
	opts.DefaultDataset = "run1"

	res := Run(strings.NewReader(turboInput), &syn, &fh, opts)
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorSummary())
	}
	if res.Rows != 4 {
		t.Errorf("Rows = %d, want 4", res.Rows)
	}
	// no thresholds enabled: everything is retained
	if res.Retained != 4 {
		t.Errorf("Retained = %d, want 4", res.Retained)
	}
	// scan 100 has charges 2 and 3, scan 101 has charge 2
	if res.FirstHits != 3 {
		t.Errorf("FirstHits = %d, want 3", res.FirstHits)
	}
	if res.Forward != 3 || res.Decoy != 1 {
		t.Errorf("Forward/Decoy = %d/%d, want 3/1", res.Forward, res.Decoy)
	}

	synLines := strings.Split(strings.TrimRight(syn.String(), "\n"), "\n")
	if len(synLines) != 5 {
		t.Fatalf("synopsis has %d lines, want header plus 4 rows", len(synLines))
	}
	// canonical order: best score first
	if !strings.Contains(synLines[1], "K.SEQVENCE.K") {
		t.Errorf("first synopsis row = %q, want the 4.2 hit", synLines[1])
	}
	// default dataset fills the empty column
	if !strings.Contains(synLines[1], "run1") {
		t.Errorf("first synopsis row = %q, want the default dataset", synLines[1])
	}

	fhLines := strings.Split(strings.TrimRight(fh.String(), "\n"), "\n")
	if len(fhLines) != 4 {
		t.Errorf("first-hits has %d lines, want header plus 3 rows", len(fhLines))
	}
}

func TestRunThresholdFilter(t *testing.T) {
	var syn bytes.Buffer
	opts := runOpts(t)
	opts.Thresholds = filter.Thresholds{MinPrimary: 3.0, UsePrimary: true}

	res := Run(strings.NewReader(turboInput), &syn, nil, opts)
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorSummary())
	}
	// only the 3.5 and 4.2 hits pass
	if res.Retained != 2 {
		t.Errorf("Retained = %d, want 2", res.Retained)
	}
	if res.FirstHits != 0 {
		t.Errorf("FirstHits = %d, want 0 without a first-hits writer", res.FirstHits)
	}
}

func TestRunQValues(t *testing.T) {
	var syn bytes.Buffer
	opts := runOpts(t)
	opts.ComputeQValues = true

	res := Run(strings.NewReader(turboInput), &syn, nil, opts)
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorSummary())
	}

	header := strings.SplitN(syn.String(), "\n", 2)[0]
	if !strings.HasSuffix(header, "\tQValue") {
		t.Errorf("header %q should carry the QValue column", header)
	}
	for _, r := range res.RetainedSet {
		if r.QValue < 0 || r.QValue > 1 {
			t.Errorf("QValue %v out of range", r.QValue)
		}
	}
}

func TestRunMsalignObservedMass(t *testing.T) {
	tool, err := core.ToolByName("msalign")
	if err != nil {
		t.Fatal(err)
	}

	theo := core.SequenceMass("PEPTIDE")
	src := "Spectrum_ID\tScan(s)\tCharge\tPrecursor_mass\tP-score\tE-value\tProtein_Accession\tProteoform\n" +
		fmt.Sprintf("sp_01\t100\t2\t%.6f\t40.5\t0.001\tP12345\tK.PEPTIDE.R\n", theo+0.02)

	var syn bytes.Buffer
	res := Run(strings.NewReader(src), &syn, nil, Options{Tool: tool, Catalog: core.NewModCatalog()})
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorSummary())
	}
	if len(res.RetainedSet) != 1 {
		t.Fatalf("RetainedSet len = %d", len(res.RetainedSet))
	}

	// the observed precursor mass carries a 0.02 Da error; a proton-sized
	// delta here means the column fed the engine-theoretical slot
	r := res.RetainedSet[0]
	if r.DelMDa < 0.019 || r.DelMDa > 0.021 {
		t.Errorf("DelMDa = %.4f, want about 0.02", r.DelMDa)
	}
	if math.Abs(r.TheoreticalMass-theo) > 1e-4 {
		t.Errorf("TheoreticalMass = %.4f, want recomputed %.4f", r.TheoreticalMass, theo)
	}
}

func TestRunRowErrors(t *testing.T) {
	src := "ScanNum\tChargeState\tXCorr\tDelCn\tReference\tPeptide\n" +
		"100\t2\t3.5\t0.40\tP12345\t\n" + // missing peptide
		"0\t2\t2.0\t0.10\tP1\tK.GOOD.R\n" + // no scan, no spectrum name
		"102\t2\t2.0\t0.10\tP1\tK.FINE.R\n"

	var syn bytes.Buffer
	res := Run(strings.NewReader(src), &syn, nil, runOpts(t))
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorSummary())
	}
	if res.Rows != 1 {
		t.Errorf("Rows = %d, want 1 (bad rows skipped)", res.Rows)
	}
	if len(res.RowErrors) != 2 {
		t.Errorf("RowErrors = %v, want 2 entries", res.RowErrors)
	}
	for _, e := range res.RowErrors {
		if !strings.HasPrefix(e, "line ") {
			t.Errorf("row error %q should name its line", e)
		}
	}
}

func TestRunRowErrorsInLineOrder(t *testing.T) {
	// a short row between two parse errors must be reported in between,
	// not collected at the end of the run
	src := "ScanNum\tChargeState\tXCorr\tDelCn\tReference\tPeptide\n" +
		"100\t2\t3.5\t0.40\tP12345\t\n" + // line 2: missing peptide
		"101\t2\n" + // line 3: short row
		"0\t2\t2.0\t0.10\tP1\tK.GOOD.R\n" // line 4: no scan number

	var syn bytes.Buffer
	res := Run(strings.NewReader(src), &syn, nil, runOpts(t))
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorSummary())
	}
	if len(res.RowErrors) != 3 {
		t.Fatalf("RowErrors = %v, want 3 entries", res.RowErrors)
	}
	for i, want := range []string{"line 2", "line 3", "line 4"} {
		if !strings.HasPrefix(res.RowErrors[i], want) {
			t.Errorf("RowErrors[%d] = %q, want prefix %q", i, res.RowErrors[i], want)
		}
	}
}

func TestRunNoPrecursorWarning(t *testing.T) {
	var syn bytes.Buffer
	res := Run(strings.NewReader(turboInput), &syn, nil, runOpts(t))
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorSummary())
	}

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "no precursor information") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a no-precursor notice for a header without mass columns", res.Warnings)
	}

	// with a precursor side file the notice is suppressed
	opts := runOpts(t)
	opts.Precursors = map[core.ScanKey]float64{}
	syn.Reset()
	res = Run(strings.NewReader(turboInput), &syn, nil, opts)
	for _, w := range res.Warnings {
		if strings.Contains(w, "no precursor information") {
			t.Errorf("unexpected notice with a precursor map configured: %q", w)
		}
	}
}

func TestRunDegradedModeWarning(t *testing.T) {
	var syn bytes.Buffer
	opts := runOpts(t)
	opts.Catalog = nil

	res := Run(strings.NewReader(turboInput), &syn, nil, opts)
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorSummary())
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "no modifications loaded") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a degraded-mode notice", res.Warnings)
	}
}

func TestRunStop(t *testing.T) {
	stop := make(chan struct{})
	close(stop)

	var syn bytes.Buffer
	opts := runOpts(t)
	opts.Stop = stop

	res := Run(strings.NewReader(turboInput), &syn, nil, opts)
	if !res.Aborted {
		t.Error("run with a closed stop channel should report Aborted")
	}
	if res.Rows != 0 {
		t.Errorf("Rows = %d, want 0 after immediate stop", res.Rows)
	}
}

func TestRunPrecursorOverride(t *testing.T) {
	src := "ScanNum\tChargeState\tXCorr\tDelCn\tReference\tPeptide\n" +
		"100\t2\t3.5\t0.40\tP12345\tK.PEPTIDE.R\n"

	theo := core.SequenceMass("PEPTIDE")
	mz := (theo + 0.002 + 2*core.ProtonMass) / 2

	opts := runOpts(t)
	opts.Precursors = map[core.ScanKey]float64{
		{Scan: 100}: mz,
	}

	var syn bytes.Buffer
	res := Run(strings.NewReader(src), &syn, nil, opts)
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorSummary())
	}
	if len(res.RetainedSet) != 1 {
		t.Fatalf("RetainedSet len = %d", len(res.RetainedSet))
	}
	r := res.RetainedSet[0]
	if r.MH == 0 {
		t.Fatal("precursor m/z should yield a nonzero MH")
	}
	if r.DelMDa < 0.0015 || r.DelMDa > 0.0025 {
		t.Errorf("DelMDa = %v, want about 0.002", r.DelMDa)
	}
	if len(res.PPMErrors) != 1 {
		t.Errorf("PPMErrors = %v, want one entry", res.PPMErrors)
	}
}
