// Package filter applies the per-scan-group retention policies that decide
// which candidates survive into the synopsis and first-hits outputs.
package filter

import (
	"pephit/pkg/core"
)

// Thresholds configures the threshold-union policy. A candidate is retained
// when ANY enabled metric qualifies (logical OR, not AND). With no metric
// enabled every candidate is retained.
type Thresholds struct {
	MinPrimary   float64
	UsePrimary   bool
	MaxSecondary float64
	UseSecondary bool
	MinTertiary  float64
	UseTertiary  bool
}

// Retain reports whether a candidate qualifies under the union policy.
func (t Thresholds) Retain(c *core.Candidate) bool {
	if !t.UsePrimary && !t.UseSecondary && !t.UseTertiary {
		return true
	}
	if t.UsePrimary && c.PrimaryScore >= t.MinPrimary {
		return true
	}
	if t.UseSecondary && c.SecondaryScore <= t.MaxSecondary {
		return true
	}
	if t.UseTertiary && c.TertiaryScore >= t.MinTertiary {
		return true
	}
	return false
}

// ThresholdUnion applies the union policy to a ranked scan group, dropping
// exact duplicate identifications (same peptide, scan and charge) along the
// way.
func ThresholdUnion(group []core.Candidate, t Thresholds) []core.Candidate {
	var retained []core.Candidate
	seen := make(map[core.HitKey]struct{}, len(group))

	for i := range group {
		c := &group[i]
		if !t.Retain(c) {
			continue
		}
		key := c.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		retained = append(retained, *c)
	}

	return retained
}

// BestPerCharge emits only the first (best) entry for each distinct charge
// in a ranked scan group. The group must already be in ranked order
// (charge runs sorted best-first), which is what rank.Rank leaves behind.
func BestPerCharge(group []core.Candidate) []core.Candidate {
	var best []core.Candidate
	lastCharge := -1

	for i := range group {
		if group[i].Charge == lastCharge {
			continue
		}
		lastCharge = group[i].Charge
		best = append(best, group[i])
	}

	return best
}
