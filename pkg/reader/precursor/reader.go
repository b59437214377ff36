// Package precursor loads the optional precursor-ion side file that upgrades
// mass-error computation from theoretical-only to observed-precursor-corrected.
package precursor

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pephit/pkg/core"
)

// Map holds precursor m/z values keyed by (dataset, scan).
type Map map[core.ScanKey]float64

// Load reads a tab-delimited side file with columns Dataset, Scan,
// PrecursorMZ (header names matched case-insensitively; a headerless file is
// assumed to use that order). Rows with unparseable values are skipped.
func Load(r io.Reader) (Map, error) {
	m := make(Map)

	scanner := bufio.NewScanner(r)
	dsCol, scanCol, mzCol := 0, 1, 2
	first := true
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if first {
			first = false
			if resolveHeader(fields, &dsCol, &scanCol, &mzCol) {
				continue
			}
		}

		if len(fields) <= mzCol || len(fields) <= scanCol {
			continue
		}

		scan, err := strconv.Atoi(strings.TrimSpace(fields[scanCol]))
		if err != nil {
			continue
		}
		mz, err := strconv.ParseFloat(strings.TrimSpace(fields[mzCol]), 64)
		if err != nil {
			continue
		}

		dataset := ""
		if dsCol >= 0 && dsCol < len(fields) {
			dataset = strings.TrimSpace(fields[dsCol])
		}

		m[core.ScanKey{Dataset: dataset, Scan: scan}] = mz
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading precursor file: %w", err)
	}

	return m, nil
}

// Lookup returns the precursor m/z for a spectrum, falling back to a
// dataset-less key so single-dataset side files need not repeat the name.
func (m Map) Lookup(dataset string, scan int) (float64, bool) {
	if mz, ok := m[core.ScanKey{Dataset: dataset, Scan: scan}]; ok {
		return mz, true
	}
	mz, ok := m[core.ScanKey{Scan: scan}]
	return mz, ok
}

// resolveHeader maps recognized header names onto column indexes. Returns
// false when the line is data (no recognized names). A recognized header
// without a dataset column disables the dataset key entirely.
func resolveHeader(fields []string, dsCol, scanCol, mzCol *int) bool {
	found := false
	haveDs := false
	for i, f := range fields {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "dataset", "data_file":
			*dsCol = i
			found = true
			haveDs = true
		case "scan", "scannum", "scan_number":
			*scanCol = i
			found = true
		case "precursormz", "precursor_mz", "mz":
			*mzCol = i
			found = true
		}
	}
	if found && !haveDs {
		*dsCol = -1
	}
	return found
}
