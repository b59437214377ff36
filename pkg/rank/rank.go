// Package rank groups candidates by spectrum and assigns ranks and
// delta-normalized scores within each group.
package rank

import (
	"math"
	"sort"

	"pephit/pkg/core"
)

// Comparator selects which score axis orders a group.
type Comparator int

const (
	ByPrimary Comparator = iota
	BySecondary
)

// DefaultEpsilon is the score difference below which two candidates are
// considered tied and share a rank.
const DefaultEpsilon = 1e-4

// Grouper accumulates the candidate stream into scan groups. The native
// file is scan-sorted, so a scan-number (or dataset) change closes the
// previous group: it is ranked and handed to the emit callback.
type Grouper struct {
	cmp     Comparator
	epsilon float64
	emit    func([]core.Candidate)

	current []core.Candidate
	scan    int
	dataset string
	active  bool
}

// NewGrouper creates a grouper that ranks with the given comparator and tie
// epsilon before emitting each group.
func NewGrouper(cmp Comparator, epsilon float64, emit func([]core.Candidate)) *Grouper {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Grouper{cmp: cmp, epsilon: epsilon, emit: emit}
}

// Add appends a candidate to the current group, flushing first when the
// candidate opens a new scan.
func (g *Grouper) Add(c core.Candidate) {
	if g.active && (c.Scan != g.scan || c.Dataset != g.dataset) {
		g.Flush()
	}
	g.current = append(g.current, c)
	g.scan = c.Scan
	g.dataset = c.Dataset
	g.active = true
}

// Flush ranks and emits the pending group. Must be called once at stream
// end.
func (g *Grouper) Flush() {
	if len(g.current) > 0 {
		Rank(g.current, g.cmp, g.epsilon)
		g.emit(g.current)
	}
	g.current = nil
	g.active = false
}

// Rank sorts the group by (charge, selected score descending), assigns
// ranks with epsilon-tied scores sharing a rank, and computes the
// delta-normalized score along each score axis. Each axis needs its own
// sort pass because adjacency differs per axis; the group is left in the
// comparator's sort order.
func Rank(group []core.Candidate, cmp Comparator, epsilon float64) {
	sortByAxis(group, cmp)
	assignRanks(group, cmp, epsilon)

	sortByAxis(group, ByPrimary)
	deltaNorm(group, primaryScore, func(c *core.Candidate, v float64) { c.DeltaNormPrimary = v })

	sortByAxis(group, BySecondary)
	deltaNorm(group, secondaryScore, func(c *core.Candidate, v float64) { c.DeltaNormSecondary = v })

	sortByAxis(group, cmp)
}

func primaryScore(c *core.Candidate) float64   { return c.PrimaryScore }
func secondaryScore(c *core.Candidate) float64 { return c.SecondaryScore }

func axisScore(c *core.Candidate, cmp Comparator) float64 {
	if cmp == BySecondary {
		return c.SecondaryScore
	}
	return c.PrimaryScore
}

func sortByAxis(group []core.Candidate, cmp Comparator) {
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].Charge != group[j].Charge {
			return group[i].Charge < group[j].Charge
		}
		return axisScore(&group[i], cmp) > axisScore(&group[j], cmp)
	})
}

// assignRanks walks the sorted group. Rank restarts at 1 on each
// charge-distinct run and increments only when the selected score drops by
// more than epsilon, so tied scores share a rank.
func assignRanks(group []core.Candidate, cmp Comparator, epsilon float64) {
	rank := 0
	for i := range group {
		if i == 0 || group[i].Charge != group[i-1].Charge {
			rank = 1
		} else if math.Abs(axisScore(&group[i], cmp)-axisScore(&group[i-1], cmp)) > epsilon {
			rank++
		}
		group[i].RankPrimary = rank
	}
}

// deltaNorm computes |current-next|/current between adjacent same-charge
// entries in the current sort order, defaulting to 0 when current is zero
// or the entry closes its charge run.
func deltaNorm(group []core.Candidate, score func(*core.Candidate) float64, set func(*core.Candidate, float64)) {
	for i := range group {
		v := 0.0
		if i+1 < len(group) && group[i+1].Charge == group[i].Charge {
			cur := score(&group[i])
			next := score(&group[i+1])
			if cur != 0 {
				v = math.Abs(cur-next) / cur
			}
		}
		set(&group[i], v)
	}
}
