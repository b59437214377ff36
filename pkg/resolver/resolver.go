// Package resolver rewrites engine-native peptide annotations into the
// canonical form, matching modification mentions against the catalog.
package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"pephit/pkg/core"
)

// Assignment pins one resolved modification to a residue position:
// 0-based index into the clean sequence, -1 for the N-terminus, and
// len(sequence) for the C-terminus.
type Assignment struct {
	Position   int
	Descriptor *core.ModDescriptor
}

// Resolver matches modification mentions inside a peptide annotation against
// the run's catalog. The catalog is read-only and shared by all calls.
type Resolver struct {
	catalog *core.ModCatalog
	tool    *core.ToolConfig
}

// New creates a resolver over a loaded catalog and tool configuration.
func New(catalog *core.ModCatalog, tool *core.ToolConfig) *Resolver {
	return &Resolver{catalog: catalog, tool: tool}
}

var (
	massTagRe    = regexp.MustCompile(`^[+-]\d+(?:\.\d+)?`)
	bracketTagRe = regexp.MustCompile(`^\[([+-]?\d+(?:\.\d+)?)\]`)
	nameTagRe    = regexp.MustCompile(`^\(([A-Za-z][A-Za-z0-9_>:\-]*)\)`)
)

// Resolve normalizes one raw annotation. It returns the canonical
// prefix.sequence.suffix form with embedded display symbols, the clean
// sequence, the per-residue modification assignments (dynamic mentions plus
// every applicable static modification), and any resolution warnings.
// Resolving an already-canonical annotation is a no-op on the string.
func (rv *Resolver) Resolve(raw string) (canonical, clean string, assigns []Assignment, warnings []string) {
	prefix, body, suffix := splitTermini(raw)

	// A '-' terminus means the peptide sits at the protein boundary.
	proteinNTerm := prefix == "-"
	proteinCTerm := suffix == "-"

	var out, cleanB strings.Builder
	lastPos := -1

	i := 0
	for i < len(body) {
		ch := rune(body[i])

		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch >= 'A' && ch <= 'Z' {
			cleanB.WriteRune(ch)
			out.WriteRune(ch)
			lastPos = cleanB.Len() - 1
			i++
			continue
		}

		rest := body[i:]
		atEnd := !hasMoreResidues(rest)

		if m := bracketTagRe.FindStringSubmatch(rest); m != nil {
			mass, _ := strconv.ParseFloat(m[1], 64)
			rv.applyMassTag(mass, lastPos, atEnd, cleanB.String(), &out, &assigns, &warnings)
			i += len(m[0])
			continue
		}
		if m := massTagRe.FindString(rest); m != "" {
			mass, _ := strconv.ParseFloat(m, 64)
			rv.applyMassTag(mass, lastPos, atEnd, cleanB.String(), &out, &assigns, &warnings)
			i += len(m)
			continue
		}
		if m := nameTagRe.FindStringSubmatch(rest); m != nil {
			rv.applyNameTag(m[1], lastPos, cleanB.Len(), &out, &assigns, &warnings)
			i += len(m[0])
			continue
		}
		if d := rv.catalog.ResolveBySymbol(ch); d != nil {
			// already-canonical symbol; keep as-is
			assigns = append(assigns, Assignment{Position: symbolPosition(d, lastPos, cleanB.Len()), Descriptor: d})
			out.WriteRune(ch)
			i++
			continue
		}
		if ch == core.UnknownModSymbol {
			assigns = append(assigns, Assignment{Position: lastPos, Descriptor: rv.catalog.Fallback()})
			out.WriteRune(ch)
			i++
			continue
		}

		warnings = append(warnings, fmt.Sprintf("unrecognized modification mark %q in %q", string(ch), raw))
		assigns = append(assigns, Assignment{Position: lastPos, Descriptor: rv.catalog.Fallback()})
		out.WriteRune(core.UnknownModSymbol)
		i++
	}

	clean = cleanB.String()

	// Static modifications apply wherever a target residue occurs, and
	// always-applied terminus mods at the matching terminus. Two terminus
	// mods landing on the same residue is permitted.
	for _, d := range rv.catalog.Descriptors() {
		switch {
		case d.Class == core.StaticResidue:
			for pos, res := range clean {
				if strings.ContainsRune(d.Targets, res) {
					assigns = append(assigns, Assignment{Position: pos, Descriptor: d})
				}
			}
		case d.AlwaysApply && d.Class.IsNTerm():
			if d.Class == core.DynamicPeptideNTerm || proteinNTerm {
				assigns = append(assigns, Assignment{Position: -1, Descriptor: d})
			}
		case d.AlwaysApply && d.Class.IsCTerm():
			if d.Class == core.DynamicPeptideCTerm || proteinCTerm {
				assigns = append(assigns, Assignment{Position: len(clean), Descriptor: d})
			}
		}
	}

	canonical = prefix + "." + out.String() + "." + suffix
	return canonical, clean, assigns, warnings
}

// applyMassTag matches a mass-delta mention: a leading tag is an N-terminal
// mark, a tag trailing a residue applies to that residue, and an
// unmatchable trailing tag is tried as a C-terminal mark.
func (rv *Resolver) applyMassTag(mass float64, lastPos int, atEnd bool, cleanSoFar string, out *strings.Builder, assigns *[]Assignment, warnings *[]string) {
	var d *core.ModDescriptor
	pos := lastPos

	if lastPos < 0 {
		d = rv.catalog.ResolveByMass(mass, 0, core.DynamicPeptideNTerm)
	} else {
		res := rune(cleanSoFar[lastPos])
		d = rv.catalog.ResolveByMass(mass, res, core.DynamicResidue)
		if d == nil {
			d = rv.catalog.ResolveByMass(mass, 0, core.DynamicResidue)
		}
		if d == nil && atEnd {
			d = rv.catalog.ResolveByMass(mass, 0, core.DynamicPeptideCTerm)
			if d != nil {
				pos = len(cleanSoFar)
			}
		}
	}

	if d == nil {
		// An inline mention of a declared static mod carries no extra
		// mass: the static pass applies it. Drop the mark.
		var res rune
		if lastPos >= 0 {
			res = rune(cleanSoFar[lastPos])
		}
		if rv.catalog.StaticByMass(mass, res) != nil {
			return
		}
		*warnings = append(*warnings, fmt.Sprintf("no catalog entry within 0.5 Da of mass delta %+.4f", mass))
		d = rv.catalog.Fallback()
	}

	*assigns = append(*assigns, Assignment{Position: pos, Descriptor: d})
	out.WriteRune(d.Symbol)
}

// applyNameTag matches a parenthesized name mention. Case sensitivity is
// tool-dependent. The matched descriptor's class decides terminus placement.
func (rv *Resolver) applyNameTag(name string, lastPos, cleanLen int, out *strings.Builder, assigns *[]Assignment, warnings *[]string) {
	d := rv.catalog.ResolveByName(name, rv.tool.CaseSensitiveModNames)
	if d == nil {
		*warnings = append(*warnings, fmt.Sprintf("unknown modification name %q", name))
		d = rv.catalog.Fallback()
	}

	pos := lastPos
	if d.Class.IsNTerm() || lastPos < 0 {
		pos = -1
	} else if d.Class.IsCTerm() {
		pos = cleanLen
	}

	*assigns = append(*assigns, Assignment{Position: pos, Descriptor: d})
	out.WriteRune(d.Symbol)
}

// symbolPosition places an already-canonical symbol by its descriptor class.
func symbolPosition(d *core.ModDescriptor, lastPos, cleanLen int) int {
	if d.Class.IsNTerm() {
		return -1
	}
	if d.Class.IsCTerm() {
		return cleanLen
	}
	return lastPos
}

// splitTermini separates the single-character prefix/suffix flanking
// residues from the annotation body and normalizes tool-specific terminus
// markers to the canonical '-'.
func splitTermini(raw string) (prefix, body, suffix string) {
	prefix, body, suffix = "-", raw, "-"
	if len(raw) >= 4 && raw[1] == '.' && raw[len(raw)-2] == '.' {
		prefix = canonicalTerminus(raw[0])
		suffix = canonicalTerminus(raw[len(raw)-1])
		body = raw[2 : len(raw)-2]
	}
	return prefix, body, suffix
}

func canonicalTerminus(b byte) string {
	if b >= 'A' && b <= 'Z' {
		return string(b)
	}
	if b >= 'a' && b <= 'z' {
		return string(b - ('a' - 'A'))
	}
	return "-"
}

// hasMoreResidues reports whether any residue letter follows in the body.
func hasMoreResidues(rest string) bool {
	for _, ch := range rest {
		if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') {
			return true
		}
	}
	return false
}
