package core

import (
	"fmt"
	"strings"
)

// Field enumerates the logical columns the pipeline consumes. Per-tool
// column tables map these onto the engine's native header names.
type Field int

const (
	FieldDataset Field = iota
	FieldScan
	FieldSpectrum
	FieldCharge
	FieldPeptide
	FieldProtein
	FieldPrimaryScore
	FieldSecondaryScore
	FieldTertiaryScore
	FieldPrecursorMz
	FieldPrecursorError
	FieldEngineMass
	FieldObservedMass

	FieldCount // number of logical fields
)

// SignConvention says which direction an engine reports precursor error.
type SignConvention int

const (
	ObservedMinusTheoretical SignConvention = iota
	TheoreticalMinusObserved
)

// ModNotation says how an engine annotates modifications in the peptide.
type ModNotation int

const (
	// MassDeltaNotation embeds mass deltas, e.g. "K.N+1PEPT+79.966IDE.R"
	MassDeltaNotation ModNotation = iota
	// NameNotation embeds parenthesized names, e.g. "K.PEPT(Phospho)IDE.R"
	NameNotation
)

// ToolConfig is the tagged-variant configuration for one search engine:
// enumerated column-name tables, the precursor-error sign convention, and
// the modification-notation style, consumed by one generic pipeline.
type ToolConfig struct {
	Name string

	// Columns maps each logical field to the header names (compared
	// case-insensitively) that carry it in this tool's files.
	Columns map[Field][]string

	// DefaultOrder is the fixed column order assumed when the file has no
	// header line.
	DefaultOrder []Field

	// MinColumns is the minimum column count for a valid data row.
	MinColumns int

	Sign                  SignConvention
	Notation              ModNotation
	CaseSensitiveModNames bool
}

// ColumnIndex resolves a header line against the tool's column table,
// returning a logical-field to column-index mapping. Every undeclared field
// maps to -1.
func (t *ToolConfig) ColumnIndex(header []string) [FieldCount]int {
	var index [FieldCount]int
	for f := range index {
		index[f] = -1
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		for f := Field(0); f < FieldCount; f++ {
			for _, accepted := range t.Columns[f] {
				if strings.EqualFold(name, accepted) {
					index[f] = i
				}
			}
		}
	}
	return index
}

// DefaultIndex returns the mapping implied by the tool's fixed default
// column order, used when the first line of the file is data.
func (t *ToolConfig) DefaultIndex() [FieldCount]int {
	var index [FieldCount]int
	for f := range index {
		index[f] = -1
	}
	for i, f := range t.DefaultOrder {
		index[f] = i
	}
	return index
}

// Built-in tool variants. The column tables are configuration data; adding
// an engine means adding a table here, not a new pipeline.
var toolVariants = []*ToolConfig{
	{
		Name: "turbo",
		Columns: map[Field][]string{
			FieldDataset:        {"Dataset"},
			FieldScan:           {"ScanNum", "Scan"},
			FieldSpectrum:       {"SpectrumFile", "DtaFile"},
			FieldCharge:         {"ChargeState", "Charge"},
			FieldPeptide:        {"Peptide", "Sequence"},
			FieldProtein:        {"Reference", "Protein"},
			FieldPrimaryScore:   {"XCorr"},
			FieldSecondaryScore: {"DelCn", "DeltaCn"},
			FieldTertiaryScore:  {"Sp"},
			FieldPrecursorMz:    {"PrecursorMZ", "MZ"},
			FieldPrecursorError: {"DelM", "MassError"},
			FieldEngineMass:     {"MH", "CalcMH"},
		},
		DefaultOrder: []Field{
			FieldScan, FieldCharge, FieldEngineMass, FieldPrimaryScore,
			FieldSecondaryScore, FieldTertiaryScore, FieldProtein, FieldPeptide,
		},
		MinColumns: 5,
		Sign:       ObservedMinusTheoretical,
		Notation:   MassDeltaNotation,
	},
	{
		Name: "tandem",
		Columns: map[Field][]string{
			FieldDataset:        {"Dataset"},
			FieldScan:           {"Scan", "ScanNum"},
			FieldSpectrum:       {"Spectrum", "SpectrumFile"},
			FieldCharge:         {"Charge", "Z"},
			FieldPeptide:        {"Peptide", "Peptide_Sequence"},
			FieldProtein:        {"Protein", "Protein_Name"},
			FieldPrimaryScore:   {"Hyperscore"},
			FieldSecondaryScore: {"Expect", "E-Value"},
			FieldTertiaryScore:  {"IonScore", "Y_Score"},
			FieldPrecursorMz:    {"Precursor_MZ", "MZ"},
			FieldPrecursorError: {"Delta_Mass", "DelM"},
			FieldEngineMass:     {"Peptide_MH", "MH"},
		},
		DefaultOrder: []Field{
			FieldScan, FieldCharge, FieldPrecursorMz, FieldPrimaryScore,
			FieldSecondaryScore, FieldProtein, FieldPeptide,
		},
		MinColumns: 5,
		Sign:       TheoreticalMinusObserved,
		Notation:   NameNotation,
		// tandem-style names are case-sensitive in the native output
		CaseSensitiveModNames: true,
	},
	{
		Name: "msalign",
		Columns: map[Field][]string{
			FieldDataset:        {"Dataset", "Data_File"},
			FieldScan:           {"Scan(s)", "Scan"},
			FieldSpectrum:       {"Spectrum_ID", "Spectrum"},
			FieldCharge:         {"Charge"},
			FieldPeptide:        {"Proteoform", "Peptide"},
			FieldProtein:        {"Protein_Accession", "Protein"},
			FieldPrimaryScore:   {"P-score", "PScore"},
			FieldSecondaryScore: {"E-value", "EValue"},
			FieldTertiaryScore:  {"#matched_fragment_ions", "MatchedIons"},
			FieldPrecursorMz:    {"Precursor_mz", "MZ"},
			FieldPrecursorError: {"Precursor_Error", "DelM"},
			// Precursor_mass is the deconvoluted OBSERVED neutral mass,
			// not the engine's theoretical MH; mapping it to the engine
			// mass would shift every delta by about a proton.
			FieldObservedMass: {"Precursor_mass", "Adjusted_precursor_mass"},
		},
		DefaultOrder: []Field{
			FieldSpectrum, FieldScan, FieldCharge, FieldObservedMass,
			FieldPrimaryScore, FieldSecondaryScore, FieldProtein, FieldPeptide,
		},
		MinColumns: 6,
		Sign:       ObservedMinusTheoretical,
		Notation:   MassDeltaNotation,
	},
}

// ToolByName returns the built-in configuration for a tool variant.
func ToolByName(name string) (*ToolConfig, error) {
	for _, t := range toolVariants {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unknown tool variant %q (supported: %s)", name, strings.Join(ToolNames(), ", "))
}

// ToolNames lists the supported tool variants.
func ToolNames() []string {
	names := make([]string, len(toolVariants))
	for i, t := range toolVariants {
		names[i] = t.Name
	}
	return names
}
