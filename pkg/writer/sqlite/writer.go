// Package sqlite writes the retained-result set and modification legend to
// a SQLite database for downstream query tooling.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"pephit/pkg/core"
	_ "github.com/mattn/go-sqlite3"
)

const runDateFormat = "2006-01-02"

// Writer handles writing results to a SQLite database file
type Writer struct {
	db         *sql.DB
	outputPath string
	resultStmt *sql.Stmt
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunInfoTable (
		ToolName TEXT,
		CreationDate TEXT,
		ResultCount INTEGER,
		DecoyCount INTEGER
	);

	CREATE TABLE IF NOT EXISTS ModSymbolTable (
		Symbol TEXT,
		Name TEXT,
		Mass DOUBLE,
		Targets TEXT,
		Class TEXT
	);

	CREATE TABLE IF NOT EXISTS SynopsisTable (
		ResultID INTEGER PRIMARY KEY,
		Dataset TEXT,
		Scan INTEGER,
		Charge INTEGER,
		MH DOUBLE,
		DelM_Da DOUBLE,
		DelM_PPM DOUBLE,
		Peptide TEXT,
		CleanSequence TEXT,
		Protein TEXT,
		Decoy BOOL,
		PrimaryScore DOUBLE,
		SecondaryScore DOUBLE,
		TertiaryScore DOUBLE,
		Rank INTEGER,
		DeltaNormPrimary DOUBLE,
		DeltaNormSecondary DOUBLE,
		QValue DOUBLE
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.resultStmt, err = w.db.Prepare(`
		INSERT INTO SynopsisTable (
			ResultID, Dataset, Scan, Charge, MH, DelM_Da, DelM_PPM,
			Peptide, CleanSequence, Protein, Decoy,
			PrimaryScore, SecondaryScore, TertiaryScore,
			Rank, DeltaNormPrimary, DeltaNormSecondary, QValue
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result statement: %w", err)
	}

	return nil
}

// WriteLegend records the symbol legend for every loaded descriptor.
func (w *Writer) WriteLegend(catalog *core.ModCatalog) error {
	for _, d := range catalog.Descriptors() {
		_, err := w.db.Exec(`
			INSERT INTO ModSymbolTable (Symbol, Name, Mass, Targets, Class)
			VALUES (?, ?, ?, ?, ?)
		`, string(d.Symbol), d.Name, d.Mass, d.Targets, d.Class.String())
		if err != nil {
			return fmt.Errorf("failed to insert legend entry %q: %w", d.Name, err)
		}
	}
	return nil
}

// WriteResults inserts the retained set. Results must already carry their
// final ResultID ordering.
func (w *Writer) WriteResults(results []core.Retained) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt := tx.Stmt(w.resultStmt)

	for i := range results {
		r := &results[i]
		_, err := stmt.Exec(
			r.ResultID,
			r.Dataset,
			r.Scan,
			r.Charge,
			r.MH,
			r.DelMDa,
			r.DelMPPM,
			r.Peptide,
			r.CleanSequence,
			r.Protein,
			r.Decoy,
			r.PrimaryScore,
			r.SecondaryScore,
			r.TertiaryScore,
			r.RankPrimary,
			r.DeltaNormPrimary,
			r.DeltaNormSecondary,
			r.QValue,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert result %d: %w", r.ResultID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// Finalize writes the run info table and closes the database
func (w *Writer) Finalize(toolName string, resultCount, decoyCount int) error {
	_, err := w.db.Exec(`
		INSERT INTO RunInfoTable (ToolName, CreationDate, ResultCount, DecoyCount)
		VALUES (?, ?, ?, ?)
	`, toolName, time.Now().Format(runDateFormat), resultCount, decoyCount)
	if err != nil {
		return fmt.Errorf("failed to insert run info: %w", err)
	}

	if w.resultStmt != nil {
		w.resultStmt.Close()
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection without writing run info
func (w *Writer) Close() error {
	if w.resultStmt != nil {
		w.resultStmt.Close()
	}
	return w.db.Close()
}
