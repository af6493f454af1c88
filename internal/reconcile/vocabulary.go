package reconcile

import (
	"strings"
)

// DefaultDrugs is the canonical drug vocabulary for multiple myeloma
// treatment lines, regimens included.
var DefaultDrugs = []string{
	"Bortezomibe",
	"Carfilzomibe",
	"Ciclofosfamida",
	"Cisplatina",
	"Daratumumabe",
	"Dexametasona",
	"Doxorrubicina",
	"Elotuzumabe",
	"Etoposideo",
	"Isatuximabe",
	"Ixazomibe",
	"Lenalidomida",
	"Melfalano",
	"Pomalidomida",
	"Prednisona",
	"Talidomida",
	"CTd",
	"DTPACE",
	"KRd",
	"VCd",
	"VRd",
	"VTd",
}

// Vocabulary is a fixed set of canonical drug names. It is read-only once
// built and safe for concurrent use.
type Vocabulary struct {
	canonical map[string]string
}

// NewVocabulary builds a vocabulary. Matching is case-insensitive; the
// spelling given here is what Filter emits.
func NewVocabulary(names []string) *Vocabulary {
	v := &Vocabulary{canonical: make(map[string]string, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		v.canonical[strings.ToLower(name)] = name
	}
	return v
}

// Len returns the number of names.
func (v *Vocabulary) Len() int {
	return len(v.canonical)
}

// Filter keeps the comma-separated tokens of value that are in the
// vocabulary, in their original order and canonical spelling. It returns ""
// when no token survives.
func (v *Vocabulary) Filter(value string) string {
	var kept []string
	for _, token := range strings.Split(value, ",") {
		name, ok := v.canonical[strings.ToLower(strings.TrimSpace(token))]
		if ok {
			kept = append(kept, name)
		}
	}
	return strings.Join(kept, ", ")
}

// Preprocess filters the drug columns of t through vocab in place and
// returns the number of cells that changed.
func Preprocess(t *Table, vocab *Vocabulary, columns []string) int {
	changed := 0
	for _, row := range t.Rows {
		for _, col := range columns {
			before, ok := row[col]
			if !ok || clean(before) == "" {
				continue
			}
			after := vocab.Filter(before)
			if after != before {
				row[col] = after
				changed++
			}
		}
	}
	return changed
}
