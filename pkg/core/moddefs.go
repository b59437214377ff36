package core

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ModClass distinguishes how a modification is applied to a peptide.
type ModClass int

const (
	StaticResidue ModClass = iota
	DynamicResidue
	DynamicPeptideNTerm
	DynamicPeptideCTerm
	DynamicProteinNTerm
	DynamicProteinCTerm
)

func (c ModClass) String() string {
	switch c {
	case StaticResidue:
		return "static"
	case DynamicResidue:
		return "dynamic"
	case DynamicPeptideNTerm:
		return "peptide-nterm"
	case DynamicPeptideCTerm:
		return "peptide-cterm"
	case DynamicProteinNTerm:
		return "protein-nterm"
	case DynamicProteinCTerm:
		return "protein-cterm"
	}
	return "unknown"
}

// IsNTerm reports whether the class is scoped to an N-terminus.
func (c ModClass) IsNTerm() bool {
	return c == DynamicPeptideNTerm || c == DynamicProteinNTerm
}

// IsCTerm reports whether the class is scoped to a C-terminus.
func (c ModClass) IsCTerm() bool {
	return c == DynamicPeptideCTerm || c == DynamicProteinCTerm
}

// IsTerminal reports whether the class is terminus-scoped.
func (c ModClass) IsTerminal() bool {
	return c.IsNTerm() || c.IsCTerm()
}

const (
	// UnknownModSymbol marks a modification mention that could not be
	// matched against the catalog.
	UnknownModSymbol = '?'

	// maxModNameLength bounds the canonical name kept for symbol
	// generation and legend output.
	maxModNameLength = 16

	// massMatchTolerance is the fuzzy-match window for integer-rounded
	// mass-delta declarations.
	massMatchTolerance = 0.5

	// phosphoMonoMass is the precise monoisotopic mass substituted for
	// imprecise integer phosphorylation declarations ("80").
	phosphoMonoMass = 79.966331
)

// symbolPool is the reserved set of display symbols handed out to
// modifications in catalog order.
var symbolPool = []rune{'*', '#', '@', '$', '&', '!', '%', '~', '+', '^', '`'}

// ModDescriptor is one canonical modification definition. Descriptors are
// immutable once the catalog is loaded.
type ModDescriptor struct {
	Name    string  // canonical name, compared case-insensitively
	Mass    float64 // monoisotopic mass delta
	Targets string  // residue letters; empty means terminus-only
	Class   ModClass
	Symbol  rune // display symbol from the reserved pool, or UnknownModSymbol

	// AlwaysApply is set for terminus mods that were declared static:
	// they apply at the matching terminus of every peptide without an
	// explicit annotation.
	AlwaysApply bool
}

// ModCatalog holds all modification descriptors for one run. It is built
// once from the tool's declaration source and read-only afterwards.
type ModCatalog struct {
	descriptors []*ModDescriptor
	byName      map[string]*ModDescriptor
	bySymbol    map[rune]*ModDescriptor
	nextSymbol  int
	fallback    *ModDescriptor
}

// NewModCatalog creates an empty modification catalog.
func NewModCatalog() *ModCatalog {
	return &ModCatalog{
		byName:   make(map[string]*ModDescriptor),
		bySymbol: make(map[rune]*ModDescriptor),
	}
}

// Descriptors returns the catalog entries in declaration order.
func (c *ModCatalog) Descriptors() []*ModDescriptor {
	return c.descriptors
}

// Len returns the number of loaded descriptors.
func (c *ModCatalog) Len() int {
	return len(c.descriptors)
}

// Add registers a modification definition, assigning the next display symbol
// from the reserved pool. Re-adding an already known name returns the
// existing descriptor: each resolved name maps to exactly one descriptor.
func (c *ModCatalog) Add(name string, mass float64, targets string, class ModClass) *ModDescriptor {
	name = truncateName(name)
	if d, ok := c.byName[strings.ToLower(name)]; ok {
		return d
	}

	symbol := UnknownModSymbol
	if c.nextSymbol < len(symbolPool) {
		symbol = symbolPool[c.nextSymbol]
		c.nextSymbol++
	}

	d := &ModDescriptor{
		Name:    name,
		Mass:    mass,
		Targets: strings.ToUpper(targets),
		Class:   class,
		Symbol:  symbol,
	}
	c.descriptors = append(c.descriptors, d)
	c.byName[strings.ToLower(name)] = d
	if symbol != UnknownModSymbol {
		c.bySymbol[symbol] = d
	}
	return d
}

// ResolveByName looks up a descriptor by its declared name. Matching is
// case-insensitive unless the tool convention demands exact case.
func (c *ModCatalog) ResolveByName(name string, caseSensitive bool) *ModDescriptor {
	name = truncateName(name)
	d, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return nil
	}
	if caseSensitive && d.Name != name {
		return nil
	}
	return d
}

// ResolveBySymbol maps an embedded display symbol back to its descriptor.
func (c *ModCatalog) ResolveBySymbol(symbol rune) *ModDescriptor {
	return c.bySymbol[symbol]
}

// ResolveByMass fuzzy-matches a mass delta against the dynamic catalog
// entries, used when the native annotation encodes modifications as
// (possibly rounded) mass deltas rather than names. target restricts the
// match to descriptors whose residue set contains the residue (0 means no
// restriction); terminal restricts to descriptors of the given terminal
// scope. The first entry in catalog order within the tolerance wins. Static
// entries never match: their mass is contributed by the static pass.
func (c *ModCatalog) ResolveByMass(mass float64, target rune, terminal ModClass) *ModDescriptor {
	for _, d := range c.descriptors {
		if d.Class == StaticResidue || d.AlwaysApply {
			continue
		}
		if math.Abs(d.Mass-mass) > massMatchTolerance {
			continue
		}
		if terminal.IsTerminal() {
			if d.Class.IsNTerm() != terminal.IsNTerm() || d.Class.IsCTerm() != terminal.IsCTerm() {
				continue
			}
			return d
		}
		if d.Class.IsTerminal() {
			continue
		}
		if target != 0 && d.Targets != "" && !strings.ContainsRune(d.Targets, target) {
			continue
		}
		return d
	}
	return nil
}

// StaticByMass finds a static declaration covering a residue and mass
// delta, used to recognize inline mentions whose mass is already accounted
// for by the static pass.
func (c *ModCatalog) StaticByMass(mass float64, target rune) *ModDescriptor {
	for _, d := range c.descriptors {
		if d.Class != StaticResidue {
			continue
		}
		if math.Abs(d.Mass-mass) > massMatchTolerance {
			continue
		}
		if target != 0 && d.Targets != "" && !strings.ContainsRune(d.Targets, target) {
			continue
		}
		return d
	}
	return nil
}

// HasIsobaric reports whether an isobaric/reporter-ion label (TMT, iTRAQ)
// is configured; used to arbitrate engine-vs-recomputed mass disagreements.
func (c *ModCatalog) HasIsobaric() bool {
	for _, d := range c.descriptors {
		name := strings.ToLower(d.Name)
		if strings.Contains(name, "tmt") || strings.Contains(name, "itraq") || strings.Contains(name, "plex") {
			return true
		}
	}
	return false
}

// Fallback returns the single best-effort descriptor substituted when a
// mention cannot be resolved: zero mass contribution, sentinel symbol.
func (c *ModCatalog) Fallback() *ModDescriptor {
	if c.fallback == nil {
		c.fallback = &ModDescriptor{
			Name:   "unknown",
			Class:  DynamicResidue,
			Symbol: UnknownModSymbol,
		}
	}
	return c.fallback
}

func truncateName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxModNameLength {
		name = name[:maxModNameLength]
	}
	return name
}

// normalizeDeclaration applies the shared declaration rules: default to
// dynamic when no static/dynamic tag is present, reclassify terminus-only
// static declarations as always-applied dynamic terminus mods, and correct
// the conventional imprecise phospho mass.
func (c *ModCatalog) normalizeDeclaration(name string, mass float64, targets, typeTag, terminusTag string, warnings *[]string) *ModDescriptor {
	static := false
	switch strings.ToLower(strings.TrimSpace(typeTag)) {
	case "static", "fixed", "s":
		static = true
	case "", "dynamic", "variable", "d", "v":
		static = false
	default:
		*warnings = append(*warnings, fmt.Sprintf("modification %q: unrecognized type %q, assuming dynamic", name, typeTag))
	}

	class := DynamicResidue
	switch strings.ToLower(strings.TrimSpace(terminusTag)) {
	case "":
		if static {
			class = StaticResidue
		}
	case "peptide-n", "nterm", "n":
		class = DynamicPeptideNTerm
	case "peptide-c", "cterm", "c":
		class = DynamicPeptideCTerm
	case "protein-n", "prot-n":
		class = DynamicProteinNTerm
	case "protein-c", "prot-c":
		class = DynamicProteinCTerm
	default:
		*warnings = append(*warnings, fmt.Sprintf("modification %q: unrecognized terminus %q, ignored", name, terminusTag))
		if static {
			class = StaticResidue
		}
	}

	// A static mod scoped only to a terminus cannot be expressed as a
	// classic per-residue static mod; it becomes a dynamic terminus mod
	// that is applied to every peptide.
	alwaysApply := false
	if static && class.IsTerminal() && targets == "" {
		alwaysApply = true
	}

	if strings.Contains(strings.ToLower(name), "phospho") && mass == math.Trunc(mass) && math.Abs(mass-80) <= massMatchTolerance {
		mass = phosphoMonoMass
	}

	d := c.Add(name, mass, targets, class)
	if alwaysApply {
		d.AlwaysApply = true
	}
	return d
}

// LoadInline parses the inline comma-delimited declaration syntax, one
// declaration per line:
//
//	Name,Mass[,Targets[,static|dynamic[,Terminus]]]
//
// Blank lines and lines starting with '#' are skipped.
func (c *ModCatalog) LoadInline(r io.Reader) (int, []string, error) {
	var warnings []string
	loaded := 0

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			warnings = append(warnings, fmt.Sprintf("line %d: expected at least Name,Mass", lineNum))
			continue
		}

		name := strings.TrimSpace(parts[0])
		mass, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: invalid mass %q", lineNum, parts[1]))
			continue
		}

		var targets, typeTag, terminusTag string
		if len(parts) > 2 {
			targets = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			typeTag = strings.TrimSpace(parts[3])
		}
		if len(parts) > 4 {
			terminusTag = strings.TrimSpace(parts[4])
		}

		c.normalizeDeclaration(name, mass, targets, typeTag, terminusTag, &warnings)
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, warnings, fmt.Errorf("error reading declarations: %w", err)
	}

	return loaded, warnings, nil
}

// xmlModFile mirrors the XML declaration layout:
//
//	<modifications>
//	  <modification name="Phospho" mass="79.966331" targets="STY" type="dynamic"/>
//	  <modification name="Acetyl" mass="42.010565" type="dynamic" terminus="peptide-n"/>
//	</modifications>
type xmlModFile struct {
	XMLName xml.Name `xml:"modifications"`
	Mods    []struct {
		Name     string  `xml:"name,attr"`
		Mass     float64 `xml:"mass,attr"`
		Targets  string  `xml:"targets,attr"`
		Type     string  `xml:"type,attr"`
		Terminus string  `xml:"terminus,attr"`
	} `xml:"modification"`
}

// LoadXML parses an XML modification declaration document.
func (c *ModCatalog) LoadXML(r io.Reader) (int, []string, error) {
	var warnings []string

	var doc xmlModFile
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return 0, warnings, fmt.Errorf("failed to parse modification XML: %w", err)
	}

	loaded := 0
	for _, m := range doc.Mods {
		if strings.TrimSpace(m.Name) == "" {
			warnings = append(warnings, "modification element without a name, skipped")
			continue
		}
		c.normalizeDeclaration(m.Name, m.Mass, m.Targets, m.Type, m.Terminus, &warnings)
		loaded++
	}

	return loaded, warnings, nil
}

// LoadKeyValue parses the key=value parameter table syntax:
//
//	StaticMod1=Carbamidomethyl 57.021464 C
//	DynamicMod1=Phospho 79.966331 STY
//	DynamicTermMod1=Acetyl 42.010565 peptide-n
//
// Unrelated keys are ignored so a full parameter file can be passed as-is.
func (c *ModCatalog) LoadKeyValue(r io.Reader) (int, []string, error) {
	var warnings []string
	loaded := 0

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])

		var typeTag string
		var terminal bool
		switch {
		case strings.HasPrefix(key, "StaticTermMod"):
			typeTag, terminal = "static", true
		case strings.HasPrefix(key, "DynamicTermMod"):
			typeTag, terminal = "dynamic", true
		case strings.HasPrefix(key, "StaticMod"):
			typeTag = "static"
		case strings.HasPrefix(key, "DynamicMod"):
			typeTag = "dynamic"
		default:
			continue
		}

		fields := strings.Fields(value)
		if len(fields) < 2 {
			warnings = append(warnings, fmt.Sprintf("line %d: expected 'Name Mass [Targets|Terminus]'", lineNum))
			continue
		}

		mass, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: invalid mass %q", lineNum, fields[1]))
			continue
		}

		var targets, terminusTag string
		if len(fields) > 2 {
			if terminal {
				terminusTag = fields[2]
			} else {
				targets = fields[2]
			}
		} else if terminal {
			terminusTag = "nterm"
		}

		c.normalizeDeclaration(fields[0], mass, targets, typeTag, terminusTag, &warnings)
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, warnings, fmt.Errorf("error reading parameter table: %w", err)
	}

	return loaded, warnings, nil
}

// LoadModifications reads a declaration source, sniffing the syntax: an XML
// document, a key=value parameter table, or the inline comma-delimited list.
func LoadModifications(r io.Reader) (*ModCatalog, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read modification source: %w", err)
	}

	catalog := NewModCatalog()
	text := string(data)
	trimmed := strings.TrimSpace(text)

	var warnings []string
	switch {
	case strings.HasPrefix(trimmed, "<"):
		_, warnings, err = catalog.LoadXML(strings.NewReader(text))
	case looksLikeKeyValue(trimmed):
		_, warnings, err = catalog.LoadKeyValue(strings.NewReader(text))
	default:
		_, warnings, err = catalog.LoadInline(strings.NewReader(text))
	}
	if err != nil {
		return nil, warnings, err
	}

	return catalog, warnings, nil
}

// looksLikeKeyValue reports whether the first declaration-shaped line uses
// the key=value syntax.
func looksLikeKeyValue(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.Contains(line, "=")
	}
	return false
}
