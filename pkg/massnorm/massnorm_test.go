package massnorm

import (
	"math"
	"testing"

	"pephit/pkg/core"
	"pephit/pkg/resolver"
)

func TestTheoreticalMass(t *testing.T) {
	catalog := core.NewModCatalog()
	phos := catalog.Add("Phospho", 79.966331, "STY", core.DynamicResidue)
	carb := catalog.Add("Carbamidomethyl", 57.021464, "C", core.StaticResidue)

	base := core.SequenceMass("PEPTIDE")
	tests := []struct {
		name    string
		assigns []resolver.Assignment
		want    float64
	}{
		{"no modifications", nil, base},
		{"one dynamic", []resolver.Assignment{{Position: 3, Descriptor: phos}}, base + 79.966331},
		{
			"dynamic plus static",
			[]resolver.Assignment{{Position: 3, Descriptor: phos}, {Position: 0, Descriptor: carb}},
			base + 79.966331 + 57.021464,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TheoreticalMass("PEPTIDE", tt.assigns)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("TheoreticalMass() = %.6f, want %.6f", got, tt.want)
			}
		})
	}
}

func TestObservedMassErrorFromPrecursorMz(t *testing.T) {
	n := &Normalizer{Tool: &core.ToolConfig{Sign: core.ObservedMinusTheoretical}}

	theo := 1000.0
	delDa := 0.001
	charge := 2
	mz := (theo + delDa + float64(charge)*core.ProtonMass) / float64(charge)

	c := &core.Candidate{TheoreticalMass: theo, PrecursorMz: mz, Charge: charge}
	n.ObservedMassError(c)

	if math.Abs(c.DelMDa-delDa) > 1e-9 {
		t.Errorf("DelMDa = %.9f, want %.9f", c.DelMDa, delDa)
	}
	if math.Abs(c.DelMPPM-1.0) > 1e-6 {
		t.Errorf("DelMPPM = %.6f, want 1.0", c.DelMPPM)
	}
	if math.Abs(c.MH-(theo+delDa+core.ProtonMass)) > 1e-9 {
		t.Errorf("MH = %.6f", c.MH)
	}
}

func TestObservedMassErrorFromObservedMass(t *testing.T) {
	n := &Normalizer{Tool: &core.ToolConfig{Sign: core.ObservedMinusTheoretical}}

	// deconvoluted observed neutral mass with a 0.02 Da error; the delta
	// must come out as 0.02, not shifted by about a proton
	theo := core.SequenceMass("PEPTIDE")
	c := &core.Candidate{TheoreticalMass: theo, ObservedMass: theo + 0.02, Charge: 2}

	if w := n.ReconcileEngineMass(c); w != "" {
		t.Fatalf("observed mass must not trigger engine-mass arbitration: %s", w)
	}
	if c.TheoreticalMass != theo {
		t.Fatalf("TheoreticalMass = %.6f, want unchanged %.6f", c.TheoreticalMass, theo)
	}

	n.ObservedMassError(c)
	if math.Abs(c.DelMDa-0.02) > 1e-9 {
		t.Errorf("DelMDa = %.6f, want 0.02", c.DelMDa)
	}
	wantMH := core.MHFromMass(theo + 0.02)
	if math.Abs(c.MH-wantMH) > 1e-9 {
		t.Errorf("MH = %.6f, want %.6f", c.MH, wantMH)
	}
}

func TestObservedMassErrorPrecursorMzWins(t *testing.T) {
	n := &Normalizer{Tool: &core.ToolConfig{Sign: core.ObservedMinusTheoretical}}

	theo := 1000.0
	mz := (theo + 0.001 + 2*core.ProtonMass) / 2
	c := &core.Candidate{
		TheoreticalMass: theo,
		PrecursorMz:     mz,
		ObservedMass:    theo + 0.5, // must be ignored when m/z is present
		Charge:          2,
	}
	n.ObservedMassError(c)

	if math.Abs(c.DelMDa-0.001) > 1e-9 {
		t.Errorf("DelMDa = %.6f, want the m/z-derived 0.001", c.DelMDa)
	}
}

func TestObservedMassErrorFromErrorField(t *testing.T) {
	tests := []struct {
		name    string
		sign    core.SignConvention
		err     float64
		wantDel float64
	}{
		{"observed minus theoretical passes through", core.ObservedMinusTheoretical, 0.5, 0.5},
		{"theoretical minus observed is negated", core.TheoreticalMinusObserved, 0.5, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Normalizer{Tool: &core.ToolConfig{Sign: tt.sign}}
			c := &core.Candidate{
				TheoreticalMass:  1000.0,
				PrecursorError:   tt.err,
				HavePrecursorErr: true,
				Charge:           2,
			}
			n.ObservedMassError(c)

			if math.Abs(c.DelMDa-tt.wantDel) > 1e-9 {
				t.Errorf("DelMDa = %.6f, want %.6f", c.DelMDa, tt.wantDel)
			}
			wantMH := core.MHFromMass(1000.0 + tt.wantDel)
			if math.Abs(c.MH-wantMH) > 1e-9 {
				t.Errorf("MH = %.6f, want %.6f", c.MH, wantMH)
			}
		})
	}
}

func TestObservedMassErrorMissingPrecursor(t *testing.T) {
	n := &Normalizer{Tool: &core.ToolConfig{Sign: core.ObservedMinusTheoretical}}
	c := &core.Candidate{TheoreticalMass: 1000.0, Charge: 2}
	n.ObservedMassError(c)

	if c.MH != 0 || c.DelMDa != 0 || c.DelMPPM != 0 {
		t.Errorf("without precursor information the mass-error fields must be zero, got MH=%v DelMDa=%v DelMPPM=%v",
			c.MH, c.DelMDa, c.DelMPPM)
	}
}

func TestObservedMassErrorC13Correction(t *testing.T) {
	n := &Normalizer{
		Tool:       &core.ToolConfig{Sign: core.ObservedMinusTheoretical},
		CorrectC13: true,
	}

	// one full isotope spacing on top of a 1 ppm residual error
	c := &core.Candidate{
		TheoreticalMass:  1000.0,
		PrecursorError:   core.C13Spacing + 0.001,
		HavePrecursorErr: true,
		Charge:           2,
	}
	n.ObservedMassError(c)

	if math.Abs(c.DelMPPM-1.0) > 1e-6 {
		t.Errorf("corrected DelMPPM = %.6f, want 1.0", c.DelMPPM)
	}
	if math.Abs(c.DelMDa-0.001) > 1e-9 {
		t.Errorf("corrected DelMDa = %.9f, want 0.001", c.DelMDa)
	}
}

func TestObservedMassErrorC13SmallErrorUntouched(t *testing.T) {
	n := &Normalizer{
		Tool:       &core.ToolConfig{Sign: core.ObservedMinusTheoretical},
		CorrectC13: true,
	}

	c := &core.Candidate{
		TheoreticalMass:  1000.0,
		PrecursorError:   0.002,
		HavePrecursorErr: true,
		Charge:           2,
	}
	n.ObservedMassError(c)

	if math.Abs(c.DelMDa-0.002) > 1e-9 {
		t.Errorf("DelMDa = %.9f, small errors must pass through unchanged", c.DelMDa)
	}
	if math.Abs(c.DelMPPM-2.0) > 1e-6 {
		t.Errorf("DelMPPM = %.6f, want 2.0", c.DelMPPM)
	}
}

func TestReconcileEngineMass(t *testing.T) {
	theo := 1000.0
	recomputedMH := core.MHFromMass(theo)

	t.Run("agreement keeps recomputed value", func(t *testing.T) {
		n := &Normalizer{Tool: &core.ToolConfig{}}
		c := &core.Candidate{TheoreticalMass: theo, EngineMass: recomputedMH + 0.005, Scan: 10}
		if w := n.ReconcileEngineMass(c); w != "" {
			t.Errorf("unexpected warning: %s", w)
		}
		if c.TheoreticalMass != theo {
			t.Errorf("TheoreticalMass = %.6f, want unchanged %.6f", c.TheoreticalMass, theo)
		}
	})

	t.Run("disagreement defers to engine and warns", func(t *testing.T) {
		n := &Normalizer{Tool: &core.ToolConfig{}}
		c := &core.Candidate{TheoreticalMass: theo, EngineMass: recomputedMH + 0.02, Scan: 10}
		w := n.ReconcileEngineMass(c)
		if w == "" {
			t.Fatal("expected an inconsistency warning")
		}
		want := c.EngineMass - core.ProtonMass
		if math.Abs(c.TheoreticalMass-want) > 1e-9 {
			t.Errorf("TheoreticalMass = %.6f, want engine-derived %.6f", c.TheoreticalMass, want)
		}
	})

	t.Run("isobaric label silences arbitration", func(t *testing.T) {
		n := &Normalizer{Tool: &core.ToolConfig{}, IsobaricConfigured: true}
		c := &core.Candidate{TheoreticalMass: theo, EngineMass: recomputedMH + 0.02, Scan: 10}
		if w := n.ReconcileEngineMass(c); w != "" {
			t.Errorf("unexpected warning: %s", w)
		}
		if c.TheoreticalMass != theo {
			t.Errorf("TheoreticalMass = %.6f, want recomputed value kept", c.TheoreticalMass)
		}
	})

	t.Run("missing engine mass is a no-op", func(t *testing.T) {
		n := &Normalizer{Tool: &core.ToolConfig{}}
		c := &core.Candidate{TheoreticalMass: theo}
		if w := n.ReconcileEngineMass(c); w != "" {
			t.Errorf("unexpected warning: %s", w)
		}
	})
}
