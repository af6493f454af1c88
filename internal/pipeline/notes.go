package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hemapex/hemapex/internal/reconcile"
)

// Note is one patient's free-text clinical note.
type Note struct {
	PatientID string
	Text      string
	Date      string // optional, as found in the source
}

// NoteColumns names the columns of a notes CSV.
type NoteColumns struct {
	ID   string
	Text string
	Date string // optional
}

// DefaultNoteColumns matches the consolidated notes export.
func DefaultNoteColumns() NoteColumns {
	return NoteColumns{ID: "rghc", Text: "text", Date: "data_dt"}
}

// ValidatePatientID rejects ids that cannot be used as a file name inside
// the results directory.
func ValidatePatientID(id string) error {
	if id == "." || id == ".." || strings.ContainsAny(id, "/\\\x00") {
		return fmt.Errorf("invalid patient id %q", id)
	}
	return nil
}

// ReadNotes parses a notes CSV. Rows with a blank id are dropped; an id that
// is not a valid file name is an error.
func ReadNotes(r io.Reader, cols NoteColumns, comma rune) ([]Note, error) {
	table, err := reconcile.ReadTable(r, reconcile.ReadOptions{Comma: comma, IDColumn: cols.ID})
	if err != nil {
		return nil, err
	}
	for _, col := range []string{cols.ID, cols.Text} {
		if !table.HasColumn(col) {
			return nil, fmt.Errorf("notes table has no %q column", col)
		}
	}

	notes := make([]Note, 0, len(table.Rows))
	for i, row := range table.Rows {
		id := row.Get(cols.ID)
		if id == "" {
			continue
		}
		if err := ValidatePatientID(id); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		note := Note{PatientID: id, Text: row[cols.Text]}
		if cols.Date != "" {
			note.Date = row.Get(cols.Date)
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// LoadNotes reads a notes CSV file.
func LoadNotes(path string, cols NoteColumns, comma rune) ([]Note, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	notes, err := ReadNotes(f, cols, comma)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return notes, nil
}

// ReadPatientIDs reads one id per line. Blank lines and lines starting with
// '#' are ignored.
func ReadPatientIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

// LoadPatientIDs reads an id list file.
func LoadPatientIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPatientIDs(f)
}

// WritePatientIDs writes one id per line.
func WritePatientIDs(w io.Writer, ids []string) error {
	bw := bufio.NewWriter(w)
	for _, id := range ids {
		if _, err := bw.WriteString(id + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SelectNotes keeps notes whose patient is in eligible (all notes when
// eligible is nil), drops repeated patients, and truncates to the sample
// size in test mode. Source order is preserved.
func SelectNotes(notes []Note, eligible []string, cfg RunConfig) []Note {
	var allowed map[string]bool
	if eligible != nil {
		allowed = make(map[string]bool, len(eligible))
		for _, id := range eligible {
			allowed[id] = true
		}
	}

	seen := make(map[string]bool, len(notes))
	var selected []Note
	for _, n := range notes {
		if allowed != nil && !allowed[n.PatientID] {
			continue
		}
		if seen[n.PatientID] {
			continue
		}
		seen[n.PatientID] = true
		selected = append(selected, n)
		if cfg.Mode == ModeTest && len(selected) >= cfg.SampleSize {
			break
		}
	}
	return selected
}
