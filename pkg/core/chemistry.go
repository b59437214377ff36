// Package core provides the chemistry constants, modification catalog, and
// data model shared by the result-normalization pipeline.
package core

import "math"

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	// Spacing between adjacent isotope peaks (C13 minus C12), used for
	// isotope-error correction
	C13Spacing = 1.00335483
)

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S int
}

// AminoAcidMasses maps amino acid one-letter codes to elemental composition
var AminoAcidMasses = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1, S: 0},
	'R': {C: 6, H: 12, N: 4, O: 1, S: 0},
	'N': {C: 4, H: 6, N: 2, O: 2, S: 0},
	'D': {C: 4, H: 5, N: 1, O: 3, S: 0},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3, S: 0},
	'Q': {C: 5, H: 8, N: 2, O: 2, S: 0},
	'G': {C: 2, H: 3, N: 1, O: 1, S: 0},
	'H': {C: 6, H: 7, N: 3, O: 1, S: 0},
	'I': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'L': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'K': {C: 6, H: 12, N: 2, O: 1, S: 0},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1, S: 0},
	'P': {C: 5, H: 7, N: 1, O: 1, S: 0},
	'S': {C: 3, H: 5, N: 1, O: 2, S: 0},
	'T': {C: 4, H: 7, N: 1, O: 2, S: 0},
	'W': {C: 11, H: 10, N: 2, O: 1, S: 0},
	'Y': {C: 9, H: 9, N: 1, O: 2, S: 0},
	'V': {C: 5, H: 9, N: 1, O: 1, S: 0},
}

// SequenceMass computes the neutral monoisotopic mass of a clean peptide
// sequence (no modification marks). Unknown residue letters contribute zero.
func SequenceMass(sequence string) float64 {
	comp := AminoAcidComposition{C: 0, H: 2, N: 0, O: 1, S: 0} // Add water

	for _, aa := range sequence {
		if aaComp, ok := AminoAcidMasses[aa]; ok {
			comp.C += aaComp.C
			comp.H += aaComp.H
			comp.N += aaComp.N
			comp.O += aaComp.O
			comp.S += aaComp.S
		}
	}

	return float64(comp.C)*MassC +
		float64(comp.H)*MassH +
		float64(comp.N)*MassN +
		float64(comp.O)*MassO +
		float64(comp.S)*MassS
}

// MHFromMass converts a neutral mass to the singly protonated (M+H)+ mass.
func MHFromMass(mass float64) float64 {
	return mass + ProtonMass
}

// MHFromMz convolutes a precursor m/z and charge state to the singly
// protonated (M+H)+ mass: mz*z - (z-1)*proton.
func MHFromMz(mz float64, charge int) float64 {
	if charge < 1 {
		return 0
	}
	z := float64(charge)
	return mz*z - (z-1)*ProtonMass
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
