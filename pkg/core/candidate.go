package core

import (
	"regexp"
	"strconv"
)

// Candidate is one row from an engine's native results file. Fields are
// populated progressively: the reader fills the raw fields, the resolver
// rewrites the annotation into canonical form, the mass normalizer fills the
// mass fields, and the ranker fills the rank fields.
type Candidate struct {
	Dataset  string
	Spectrum string // native spectrum identifier, kept for traceability
	Scan     int
	Charge   int

	RawAnnotation string // engine notation, as read
	Peptide       string // canonical prefix.sequence.suffix with mod symbols
	CleanSequence string
	Protein       string
	Decoy         bool

	// Score semantics are opaque to the pipeline; only ordering and
	// thresholds matter.
	PrimaryScore   float64
	SecondaryScore float64
	TertiaryScore  float64

	PrecursorMz      float64
	PrecursorError   float64 // engine sign convention, normalized downstream
	HavePrecursorErr bool
	EngineMass       float64 // theoretical mass as reported by the engine
	ObservedMass     float64 // deconvoluted observed neutral mass, when reported

	TheoreticalMass float64
	MH              float64
	DelMDa          float64
	DelMPPM         float64

	RankPrimary        int
	DeltaNormPrimary   float64
	DeltaNormSecondary float64
}

// Retained is a candidate that survived filtering, annotated with its
// sequential result identifier and optional FDR/Q-value.
type Retained struct {
	Candidate
	ResultID int
	FDR      float64
	QValue   float64
}

// ScanKey identifies a spectrum within a run.
type ScanKey struct {
	Dataset string
	Scan    int
}

// HitKey is the composite deduplication key for a candidate identification.
type HitKey struct {
	Peptide string
	Scan    int
	Charge  int
}

// Key returns the deduplication key for a candidate.
func (c *Candidate) Key() HitKey {
	return HitKey{Peptide: c.Peptide, Scan: c.Scan, Charge: c.Charge}
}

// dtaNameRe matches the conventional dotted spectrum-name encoding
// "dataset.startScan.endScan.charge", with an optional extension.
var dtaNameRe = regexp.MustCompile(`\.(\d+)\.(\d+)\.(\d+)(?:\.[A-Za-z0-9]+)?$`)

// ScanFromSpectrumName derives the scan number from the embedded encoding in
// a spectrum filename. Used when the native scan field is a sentinel zero.
// Returns 0 when the name carries no recognizable encoding.
func ScanFromSpectrumName(name string) int {
	m := dtaNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	scan, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return scan
}
