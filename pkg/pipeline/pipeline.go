// Package pipeline wires the reader, resolver, normalizer, ranker, filter,
// and writers into one batch transform over a results file.
package pipeline

import (
	"fmt"
	"io"

	"pephit/pkg/core"
	"pephit/pkg/fdr"
	"pephit/pkg/filter"
	"pephit/pkg/massnorm"
	"pephit/pkg/rank"
	"pephit/pkg/reader/precursor"
	"pephit/pkg/reader/results"
	"pephit/pkg/resolver"
	"pephit/pkg/writer/tsv"
)

// maxRowErrors caps the accumulated row-level error messages so a
// systematically malformed file cannot grow memory without bound.
const maxRowErrors = 255

// Options configures one run.
type Options struct {
	Tool       *core.ToolConfig
	Catalog    *core.ModCatalog
	Precursors precursor.Map

	// DefaultDataset fills the dataset field for files without a Dataset
	// column.
	DefaultDataset string

	Thresholds filter.Thresholds
	Comparator rank.Comparator
	Epsilon    float64

	ComputeQValues bool
	DecoyPrefix    string
	CorrectC13     bool

	// Stop is checked once per input line for a graceful early stop.
	// Partial output already written stays on disk.
	Stop <-chan struct{}
}

// Result is the aggregated outcome of a run. Success is false only for
// fatal failures (I/O, setup); row-level problems accumulate as capped
// messages without aborting the run.
type Result struct {
	Success bool
	Aborted bool

	Rows      int
	Retained  int
	FirstHits int
	Forward   int
	Decoy     int

	RowErrors []string
	Warnings  []string
	PPMErrors []float64

	// RetainedSet is the final synopsis set in canonical order, kept for
	// callers that post-process it (the SQLite writer, reports).
	RetainedSet []core.Retained
}

// ErrorSummary joins the capped row-level errors into one multi-line
// message for the caller.
func (r *Result) ErrorSummary() string {
	if len(r.RowErrors) == 0 {
		return ""
	}
	msg := ""
	for _, e := range r.RowErrors {
		msg += e + "\n"
	}
	return msg
}

func (r *Result) addRowError(msg string) {
	if len(r.RowErrors) < maxRowErrors {
		r.RowErrors = append(r.RowErrors, msg)
	}
}

// Run reads one results stream, resolves and normalizes every row, groups,
// ranks and filters per scan, optionally estimates Q-values, and writes the
// synopsis (and first-hits, when fhOut is non-nil) outputs.
func Run(in io.Reader, synOut, fhOut io.Writer, opts Options) *Result {
	res := &Result{}

	catalog := opts.Catalog
	if catalog == nil || catalog.Len() == 0 {
		// Degraded mode: no usable declarations. Mentions resolve to
		// the zero-mass fallback descriptor.
		if catalog == nil {
			catalog = core.NewModCatalog()
		}
		res.Warnings = append(res.Warnings, "no modifications loaded; annotations resolve with zero mass contribution")
	}

	rv := resolver.New(catalog, opts.Tool)
	norm := &massnorm.Normalizer{
		Tool:               opts.Tool,
		CorrectC13:         opts.CorrectC13,
		IsobaricConfigured: catalog.HasIsobaric(),
	}

	var retained []core.Retained
	var firstHits []core.Retained
	seenWarnings := make(map[string]struct{})

	warn := func(msg string) {
		if _, ok := seenWarnings[msg]; ok {
			return
		}
		seenWarnings[msg] = struct{}{}
		res.Warnings = append(res.Warnings, msg)
	}

	grouper := rank.NewGrouper(opts.Comparator, opts.Epsilon, func(group []core.Candidate) {
		for _, c := range filter.ThresholdUnion(group, opts.Thresholds) {
			retained = append(retained, core.Retained{Candidate: c})
		}
		if fhOut != nil {
			for _, c := range filter.BestPerCharge(group) {
				firstHits = append(firstHits, core.Retained{Candidate: c})
			}
		}
	})

	reader := results.NewReader(in, opts.Tool)
	rejectedSeen := 0
	drainRejected := func() {
		for _, msg := range reader.Rejected()[rejectedSeen:] {
			res.addRowError(msg)
		}
		rejectedSeen = len(reader.Rejected())
	}

	headerChecked := false
	for reader.Next() {
		select {
		case <-opts.Stop:
			res.Aborted = true
		default:
		}
		if res.Aborted {
			break
		}
		// keep short-row rejections in line order with parse errors
		drainRejected()

		if !headerChecked {
			headerChecked = true
			if opts.Precursors == nil &&
				!reader.HasField(core.FieldPrecursorMz) &&
				!reader.HasField(core.FieldPrecursorError) &&
				!reader.HasField(core.FieldObservedMass) {
				warn("input carries no precursor information; observed mass errors will be zero")
			}
		}

		c, err := parseCandidate(reader)
		if err != nil {
			res.addRowError(fmt.Sprintf("line %d: %v", reader.LineNum(), err))
			continue
		}
		res.Rows++

		if c.Dataset == "" {
			c.Dataset = opts.DefaultDataset
		}

		if opts.Precursors != nil {
			if mz, ok := opts.Precursors.Lookup(c.Dataset, c.Scan); ok {
				c.PrecursorMz = mz
			}
		}

		canonical, clean, assigns, warnings := rv.Resolve(c.RawAnnotation)
		for _, w := range warnings {
			warn(w)
		}
		c.Peptide = canonical
		c.CleanSequence = clean

		c.TheoreticalMass = massnorm.TheoreticalMass(clean, assigns)
		if w := norm.ReconcileEngineMass(&c); w != "" {
			warn(w)
		}
		norm.ObservedMassError(&c)

		grouper.Add(c)
	}
	grouper.Flush()

	drainRejected()
	if n := reader.Truncated(); n > 0 {
		warn(fmt.Sprintf("%d additional malformed rows were skipped without individual messages", n))
	}
	if err := reader.Err(); err != nil {
		res.addRowError(fmt.Sprintf("fatal read error: %v", err))
		return res
	}

	fdr.MarkDecoys(retained, opts.DecoyPrefix)
	if opts.ComputeQValues {
		fdr.Estimate(retained)
	}
	res.Forward, res.Decoy = fdr.Counts(retained)
	res.Retained = len(retained)
	res.FirstHits = len(firstHits)

	for i := range retained {
		if retained[i].MH > 0 {
			res.PPMErrors = append(res.PPMErrors, retained[i].DelMPPM)
		}
	}

	if synOut != nil {
		if err := tsv.WriteSynopsis(synOut, retained, opts.ComputeQValues); err != nil {
			res.addRowError(fmt.Sprintf("fatal write error: %v", err))
			return res
		}
	} else {
		tsv.SortCanonical(retained)
	}
	res.RetainedSet = retained
	if fhOut != nil {
		fdr.MarkDecoys(firstHits, opts.DecoyPrefix)
		if err := tsv.WriteFirstHits(fhOut, firstHits); err != nil {
			res.addRowError(fmt.Sprintf("fatal write error: %v", err))
			return res
		}
	}

	res.Success = true
	return res
}

func parseCandidate(r *results.Reader) (core.Candidate, error) {
	var c core.Candidate

	c.RawAnnotation = r.Field(core.FieldPeptide, "")
	if c.RawAnnotation == "" {
		return c, fmt.Errorf("missing peptide annotation")
	}

	c.Dataset = r.Field(core.FieldDataset, "")
	c.Spectrum = r.Field(core.FieldSpectrum, "")
	c.Scan = r.IntField(core.FieldScan, 0)
	if c.Scan == 0 {
		c.Scan = core.ScanFromSpectrumName(c.Spectrum)
	}
	if c.Scan == 0 {
		return c, fmt.Errorf("no scan number and none derivable from spectrum name %q", c.Spectrum)
	}

	c.Charge = r.IntField(core.FieldCharge, 1)
	c.Protein = r.Field(core.FieldProtein, "")
	c.PrimaryScore, _ = r.FloatField(core.FieldPrimaryScore, 0)
	c.SecondaryScore, _ = r.FloatField(core.FieldSecondaryScore, 0)
	c.TertiaryScore, _ = r.FloatField(core.FieldTertiaryScore, 0)
	c.PrecursorMz, _ = r.FloatField(core.FieldPrecursorMz, 0)
	c.PrecursorError, c.HavePrecursorErr = r.FloatField(core.FieldPrecursorError, 0)
	c.EngineMass, _ = r.FloatField(core.FieldEngineMass, 0)
	c.ObservedMass, _ = r.FloatField(core.FieldObservedMass, 0)

	return c, nil
}
