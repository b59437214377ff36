package precursor

import (
	"strings"
	"testing"
)

func TestLoadWithHeader(t *testing.T) {
	src := "Dataset\tScan\tPrecursorMZ\n" +
		"run1\t100\t400.6873\n" +
		"run1\t101\t612.3341\n" +
		"run2\t100\t523.9988\n"

	m, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(m) != 3 {
		t.Fatalf("len = %d, want 3", len(m))
	}

	mz, ok := m.Lookup("run1", 100)
	if !ok || mz != 400.6873 {
		t.Errorf("Lookup(run1, 100) = %v, %v", mz, ok)
	}
	mz, ok = m.Lookup("run2", 100)
	if !ok || mz != 523.9988 {
		t.Errorf("Lookup(run2, 100) = %v, %v", mz, ok)
	}
	if _, ok := m.Lookup("run1", 999); ok {
		t.Error("Lookup of unknown scan should fail")
	}
}

func TestLoadReorderedHeader(t *testing.T) {
	src := "PrecursorMZ\tDataset\tScanNum\n" +
		"400.6873\trun1\t100\n"

	m, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	mz, ok := m.Lookup("run1", 100)
	if !ok || mz != 400.6873 {
		t.Errorf("Lookup = %v, %v, want 400.6873", mz, ok)
	}
}

func TestLoadHeaderless(t *testing.T) {
	src := "run1\t100\t400.6873\n" +
		"run1\tbadscan\t500.0\n" + // unparseable scan is skipped
		"run1\t102\tnotanumber\n" // unparseable m/z is skipped

	m, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(m) != 1 {
		t.Errorf("len = %d, want 1 (bad rows skipped)", len(m))
	}
	if _, ok := m.Lookup("run1", 100); !ok {
		t.Error("Lookup(run1, 100) should succeed")
	}
}

func TestLookupDatasetFallback(t *testing.T) {
	// a side file without a dataset column serves any dataset
	src := "Scan\tPrecursorMZ\n" +
		"100\t400.6873\n"

	m, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	mz, ok := m.Lookup("some_run", 100)
	if !ok || mz != 400.6873 {
		t.Errorf("dataset-less fallback Lookup = %v, %v", mz, ok)
	}
}
