// Package cohort selects the patients whose notes are recent enough,
// relative to their curated reference records, to be worth (re-)extracting.
package cohort

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/hemapex/hemapex/internal/pipeline"
	"github.com/hemapex/hemapex/internal/reconcile"
	"github.com/hemapex/hemapex/internal/schema"
)

// DefaultWindowDays bounds how far a note may postdate the latest reference
// date: a patient is eligible when the gap is strictly smaller.
const DefaultWindowDays = 30

// Candidate is the eligibility decision for one patient.
type Candidate struct {
	PatientID       string    `json:"rghc" yaml:"rghc"`
	NoteDate        time.Time `json:"note_date" yaml:"note_date"`
	LatestReference time.Time `json:"latest_reference" yaml:"latest_reference"`
	GapDays         int       `json:"gap_days" yaml:"gap_days"`
	Eligible        bool      `json:"eligible" yaml:"eligible"`
}

// Selector evaluates eligibility.
type Selector struct {
	IDColumn   string
	WindowDays int
	Logger     *slog.Logger
}

// NewSelector returns a Selector with the default window.
func NewSelector(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		IDColumn:   schema.ColumnPatientID,
		WindowDays: DefaultWindowDays,
		Logger:     logger,
	}
}

// DateColumns returns the reference columns holding dates: every non-blank
// value parses as DD/MM/YYYY and at least one value is present.
func DateColumns(t *reconcile.Table, idColumn string) []string {
	var cols []string
	for _, col := range t.Columns {
		if col == idColumn {
			continue
		}
		seen := false
		ok := true
		for _, row := range t.Rows {
			v := row.Get(col)
			if v == "" {
				continue
			}
			seen = true
			if _, err := time.Parse(schema.DateLayout, v); err != nil {
				ok = false
				break
			}
		}
		if seen && ok {
			cols = append(cols, col)
		}
	}
	return cols
}

// LatestReferenceDates returns, per patient, the latest date found in any
// date column of the reference table.
func LatestReferenceDates(t *reconcile.Table, idColumn string) map[string]time.Time {
	cols := DateColumns(t, idColumn)
	latest := make(map[string]time.Time)
	for _, row := range t.Rows {
		id := row.Get(idColumn)
		if id == "" {
			continue
		}
		for _, col := range cols {
			v := row.Get(col)
			if v == "" {
				continue
			}
			d, err := time.Parse(schema.DateLayout, v)
			if err != nil {
				continue
			}
			if d.After(latest[id]) {
				latest[id] = d
			}
		}
	}
	return latest
}

var noteDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

// ParseNoteDate parses the date of a note: ISO forms first, then the
// extraction date forms.
func ParseNoteDate(v string) (time.Time, bool) {
	for _, layout := range noteDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	if t, form := schema.ParseDate(v); form != schema.FormUnknown {
		return t, true
	}
	return time.Time{}, false
}

// Evaluate decides eligibility for every patient present in both the
// reference table and the notes. When a patient has several notes the most
// recent one counts. Results are sorted by patient id.
func (s *Selector) Evaluate(reference *reconcile.Table, notes []pipeline.Note) []Candidate {
	latestRef := LatestReferenceDates(reference, s.IDColumn)

	noteDates := make(map[string]time.Time)
	for _, n := range notes {
		d, ok := ParseNoteDate(n.Date)
		if !ok {
			s.Logger.Warn("unparseable note date", "rghc", n.PatientID, "value", n.Date)
			continue
		}
		if d.After(noteDates[n.PatientID]) {
			noteDates[n.PatientID] = d
		}
	}

	var out []Candidate
	for id, noteDate := range noteDates {
		ref, ok := latestRef[id]
		if !ok {
			continue
		}
		gap := int(math.Floor(noteDate.Sub(ref).Hours() / 24))
		out = append(out, Candidate{
			PatientID:       id,
			NoteDate:        noteDate,
			LatestReference: ref,
			GapDays:         gap,
			Eligible:        gap < s.WindowDays,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out
}

// Eligible returns the ids of eligible candidates, in order.
func Eligible(candidates []Candidate) []string {
	var ids []string
	for _, c := range candidates {
		if c.Eligible {
			ids = append(ids, c.PatientID)
		}
	}
	return ids
}
