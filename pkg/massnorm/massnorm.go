// Package massnorm recomputes theoretical and observed peptide masses and
// the delta mass between them, with optional isotope-error correction.
package massnorm

import (
	"fmt"
	"math"

	"pephit/pkg/core"
	"pephit/pkg/resolver"
)

// isobaricTolerance is the largest engine-vs-recomputed mass disagreement
// accepted without arbitration.
const isobaricTolerance = 0.01

// Normalizer computes mass fields for candidates. The tool configuration
// carries the engine's precursor-error sign convention.
type Normalizer struct {
	Tool               *core.ToolConfig
	CorrectC13         bool
	IsobaricConfigured bool
}

// TheoreticalMass sums the base peptide mass and every assigned
// modification's mass delta.
func TheoreticalMass(clean string, assigns []resolver.Assignment) float64 {
	mass := core.SequenceMass(clean)
	for _, a := range assigns {
		mass += a.Descriptor.Mass
	}
	return mass
}

// ReconcileEngineMass arbitrates between the engine-reported theoretical
// (M+H)+ and the recomputed value when they disagree beyond tolerance. The
// recomputed value wins only when an isobaric label is configured (the
// engine's own field typically omits the label mass); otherwise the engine
// value is kept and a non-fatal inconsistency warning is returned.
func (n *Normalizer) ReconcileEngineMass(c *core.Candidate) string {
	if c.EngineMass <= 0 || c.TheoreticalMass <= 0 {
		return ""
	}

	recomputedMH := core.MHFromMass(c.TheoreticalMass)
	diff := recomputedMH - c.EngineMass
	if math.Abs(diff) <= isobaricTolerance {
		return ""
	}

	if n.IsobaricConfigured {
		return ""
	}

	c.TheoreticalMass = c.EngineMass - core.ProtonMass
	return fmt.Sprintf("scan %d: recomputed MH %.4f disagrees with engine value %.4f by %.4f Da, keeping engine value",
		c.Scan, recomputedMH, c.EngineMass, diff)
}

// ObservedMassError fills MH, DelMDa and DelMPPM on the candidate from the
// available precursor information. Preference order: precursor m/z, then a
// deconvoluted observed neutral mass, then the raw precursor-error field
// (sign-normalized per tool). With none of them, the outputs are explicitly
// zero.
func (n *Normalizer) ObservedMassError(c *core.Candidate) {
	theo := c.TheoreticalMass
	if theo <= 0 {
		c.MH, c.DelMDa, c.DelMPPM = 0, 0, 0
		return
	}

	var delDa float64
	switch {
	case c.PrecursorMz > 0:
		c.MH = core.MHFromMz(c.PrecursorMz, c.Charge)
		delDa = (c.MH - core.ProtonMass) - theo
	case c.ObservedMass > 0:
		c.MH = core.MHFromMass(c.ObservedMass)
		delDa = c.ObservedMass - theo
	case c.HavePrecursorErr && c.PrecursorError != 0:
		delDa = c.PrecursorError
		if n.Tool.Sign == core.TheoreticalMinusObserved {
			delDa = -delDa
		}
		c.MH = core.MHFromMass(theo + delDa)
	default:
		c.MH, c.DelMDa, c.DelMPPM = 0, 0, 0
		return
	}

	ppm := delDa / theo * 1e6

	if n.CorrectC13 {
		spacingPPM := core.C13Spacing / theo * 1e6
		if math.Abs(ppm) > spacingPPM/2 {
			units := math.Round(delDa / core.C13Spacing)
			ppm -= units * spacingPPM
			// derive Da from the corrected ppm, not the raw subtraction
			delDa = ppm * theo / 1e6
		}
	}

	c.DelMDa = delDa
	c.DelMPPM = ppm
}
