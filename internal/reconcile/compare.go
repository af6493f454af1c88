package reconcile

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hemapex/hemapex/internal/schema"
)

// DefaultToleranceDays is the largest gap at which two dates still agree.
const DefaultToleranceDays = 30

// FieldKind selects how a field is compared.
type FieldKind int

const (
	KindText FieldKind = iota
	KindDate
)

func (k FieldKind) String() string {
	if k == KindDate {
		return "date"
	}
	return "text"
}

// Field is a compared column.
type Field struct {
	Name string
	Kind FieldKind
}

// TreatmentFields returns the comparable treatment-line columns.
func TreatmentFields() []Field {
	dates := make(map[string]bool, len(schema.TreatmentDateFields))
	for _, f := range schema.TreatmentDateFields {
		dates[f] = true
	}
	fields := make([]Field, 0, len(schema.TreatmentLabelColumns))
	for _, name := range schema.TreatmentLabelColumns {
		kind := KindText
		if dates[name] {
			kind = KindDate
		}
		fields = append(fields, Field{Name: name, Kind: kind})
	}
	return fields
}

// LineCount is the structural comparison for one patient.
type LineCount struct {
	PatientID  string `json:"rghc" yaml:"rghc"`
	Extracted  int    `json:"extracted" yaml:"extracted"`
	Reference  int    `json:"reference" yaml:"reference"`
	Difference int    `json:"difference" yaml:"difference"`
}

// StructuralReport is the result of CompareLines.
type StructuralReport struct {
	Patients   []LineCount `json:"patients" yaml:"patients"`
	Mismatched int         `json:"mismatched" yaml:"mismatched"`
}

// Agreeing returns the patients whose line counts match.
func (r StructuralReport) Agreeing() []string {
	var ids []string
	for _, p := range r.Patients {
		if p.Difference == 0 {
			ids = append(ids, p.PatientID)
		}
	}
	return ids
}

// FieldTally counts comparisons for one field.
type FieldTally struct {
	Field       string `json:"field" yaml:"field"`
	Agreements  int    `json:"agreements" yaml:"agreements"`
	Comparisons int    `json:"comparisons" yaml:"comparisons"`
}

// DiffCell is one compared cell, for audit.
type DiffCell struct {
	PatientID  string
	LineNumber string
	Field      string
	Extracted  string
	Reference  string
	Agree      bool
}

// FieldReport is the result of CompareFields.
type FieldReport struct {
	Agreements  int          `json:"agreements" yaml:"agreements"`
	Comparisons int          `json:"comparisons" yaml:"comparisons"`
	ByField     []FieldTally `json:"by_field" yaml:"by_field"`
	Diffs       []DiffCell   `json:"-" yaml:"-"`
}

// Rate returns Agreements/Comparisons, or 0 when nothing was compared.
func (r FieldReport) Rate() float64 {
	if r.Comparisons == 0 {
		return 0
	}
	return float64(r.Agreements) / float64(r.Comparisons)
}

// Report combines both comparison levels.
type Report struct {
	Structural StructuralReport `json:"structural" yaml:"structural"`
	Fields     FieldReport      `json:"fields" yaml:"fields"`
}

// Comparator compares an extracted table against a reference table.
type Comparator struct {
	IDColumn      string
	LineColumn    string
	Fields        []Field
	ToleranceDays int
}

// NewComparator returns a Comparator over the treatment-line fields with the
// default tolerance.
func NewComparator() *Comparator {
	return &Comparator{
		IDColumn:      schema.ColumnPatientID,
		LineColumn:    schema.ColumnLineNumber,
		Fields:        TreatmentFields(),
		ToleranceDays: DefaultToleranceDays,
	}
}

// Compare runs CompareLines, then CompareFields over the agreeing patients.
func (c *Comparator) Compare(extracted, reference *Table) Report {
	structural := CompareLines(extracted, reference, c.IDColumn)
	return Report{
		Structural: structural,
		Fields:     c.CompareFields(extracted, reference, structural.Agreeing()),
	}
}

// Run restricts reference to the patients present in extracted, filters the
// drug columns of extracted through vocab and compares the two. The
// reference is never filtered. It returns the report and the number of
// extracted cells the filter changed.
func (c *Comparator) Run(extracted, reference *Table, vocab *Vocabulary, drugColumns []string) (Report, int) {
	ids, _ := extracted.GroupBy(c.IDColumn)
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	reference = reference.Restrict(c.IDColumn, keep)

	cleaned := Preprocess(extracted, vocab, drugColumns)
	return c.Compare(extracted, reference), cleaned
}

// CompareLines counts rows per patient on each side. Every patient present
// in either table is reported, extracted patients first.
func CompareLines(extracted, reference *Table, idColumn string) StructuralReport {
	extIDs, extRows := extracted.GroupBy(idColumn)
	refIDs, refRows := reference.GroupBy(idColumn)

	var report StructuralReport
	seen := make(map[string]bool, len(extIDs)+len(refIDs))
	for _, id := range append(extIDs, refIDs...) {
		if seen[id] {
			continue
		}
		seen[id] = true

		count := LineCount{
			PatientID: id,
			Extracted: len(extRows[id]),
			Reference: len(refRows[id]),
		}
		count.Difference = count.Extracted - count.Reference
		if count.Difference < 0 {
			count.Difference = -count.Difference
		}
		if count.Difference != 0 {
			report.Mismatched++
		}
		report.Patients = append(report.Patients, count)
	}
	return report
}

// CompareFields aligns the rows of each listed patient by line number and
// compares every configured field. Patients whose row counts differ are
// skipped.
func (c *Comparator) CompareFields(extracted, reference *Table, patients []string) FieldReport {
	_, extRows := extracted.GroupBy(c.IDColumn)
	_, refRows := reference.GroupBy(c.IDColumn)

	tallies := make([]FieldTally, len(c.Fields))
	for i, f := range c.Fields {
		tallies[i].Field = f.Name
	}

	var report FieldReport
	for _, id := range patients {
		ext := sortByLine(extRows[id], c.LineColumn)
		ref := sortByLine(refRows[id], c.LineColumn)
		if len(ext) != len(ref) {
			continue
		}
		for i := range ext {
			line := ext[i].Get(c.LineColumn)
			if line == "" {
				line = strconv.Itoa(i + 1)
			}
			for j, f := range c.Fields {
				if f.Name == c.IDColumn || f.Name == c.LineColumn {
					continue
				}
				a, b := ext[i].Get(f.Name), ref[i].Get(f.Name)
				agree := c.agree(f.Kind, a, b)

				tallies[j].Comparisons++
				report.Comparisons++
				if agree {
					tallies[j].Agreements++
					report.Agreements++
				}
				report.Diffs = append(report.Diffs, DiffCell{
					PatientID:  id,
					LineNumber: line,
					Field:      f.Name,
					Extracted:  a,
					Reference:  b,
					Agree:      agree,
				})
			}
		}
	}
	report.ByField = tallies
	return report
}

func (c *Comparator) agree(kind FieldKind, a, b string) bool {
	if kind == KindDate {
		return DatesAgree(a, b, c.ToleranceDays)
	}
	return TextAgree(a, b)
}

// sortByLine returns rows ordered by line number. Rows without a parseable
// number follow the numbered ones in file order.
func sortByLine(rows []Row, column string) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return lineKey(out[i], column) < lineKey(out[j], column)
	})
	return out
}

func lineKey(row Row, column string) int {
	v := row.Get(column)
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == math.Trunc(f) {
		return int(f)
	}
	return math.MaxInt
}

// DatesAgree reports whether two date cells agree: both absent, or both
// parseable and at most toleranceDays apart.
func DatesAgree(a, b string, toleranceDays int) bool {
	a, b = clean(a), clean(b)
	if a == "" && b == "" {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	ta, ok := parseCellDate(a)
	if !ok {
		return false
	}
	tb, ok := parseCellDate(b)
	if !ok {
		return false
	}
	gap := ta.Sub(tb)
	if gap < 0 {
		gap = -gap
	}
	return gap <= time.Duration(toleranceDays)*24*time.Hour
}

// isoLayouts are accepted in reference data alongside the extraction forms.
var isoLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

func parseCellDate(v string) (time.Time, bool) {
	if t, form := schema.ParseDate(v); form != schema.FormUnknown {
		return t, true
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// TextAgree reports whether two text cells agree: both absent, or equal
// after CanonicalText.
func TextAgree(a, b string) bool {
	a, b = clean(a), clean(b)
	if a == "" && b == "" {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return CanonicalText(a) == CanonicalText(b)
}

// CanonicalText lower-cases v, splits it on commas, trims and sorts the
// tokens, and rejoins them with ", ".
func CanonicalText(v string) string {
	tokens := strings.Split(strings.ToLower(v), ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ", ")
}

// DiffColumns is the header of the diff CSV.
var DiffColumns = []string{schema.ColumnPatientID, schema.ColumnLineNumber, "field", "extracted", "reference", "agree"}

// WriteDiffCSV writes the cell-level comparison as CSV.
func WriteDiffCSV(w io.Writer, diffs []DiffCell) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(DiffColumns); err != nil {
		return err
	}
	for _, d := range diffs {
		if err := writer.Write([]string{
			d.PatientID,
			d.LineNumber,
			d.Field,
			d.Extracted,
			d.Reference,
			strconv.FormatBool(d.Agree),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
