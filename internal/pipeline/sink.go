package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hemapex/hemapex/internal/schema"
)

// Sink serializes validated values per patient and accumulates the run
// aggregate.
type Sink[T any] interface {
	// Ext is the per-patient file extension, including the dot.
	Ext() string
	// Encode serializes one patient's value.
	Encode(patientID string, value T) ([]byte, error)
	// Add appends a value to the aggregate.
	Add(patientID string, value T)
	// Aggregate serializes everything added so far.
	Aggregate() ([]byte, error)
	// AggregateName names the aggregate file for a run.
	AggregateName(selected int, timestamp string) string
}

// TreatmentColumns is the layout of treatment CSV outputs.
var TreatmentColumns = append([]string{schema.ColumnPatientID}, schema.TreatmentColumns...)

// TreatmentSink writes treatment lines as CSV.
type TreatmentSink struct {
	mu   sync.Mutex
	rows [][]string
}

var _ Sink[schema.TreatmentLines] = (*TreatmentSink)(nil)

// NewTreatmentSink creates an empty treatment sink.
func NewTreatmentSink() *TreatmentSink {
	return &TreatmentSink{}
}

func (s *TreatmentSink) Ext() string { return ".csv" }

func (s *TreatmentSink) Encode(patientID string, value schema.TreatmentLines) ([]byte, error) {
	return encodeCSV(treatmentRows(patientID, value))
}

func (s *TreatmentSink) Add(patientID string, value schema.TreatmentLines) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, treatmentRows(patientID, value)...)
}

func (s *TreatmentSink) Aggregate() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return encodeCSV(s.rows)
}

func (s *TreatmentSink) AggregateName(selected int, timestamp string) string {
	return fmt.Sprintf("%d_rghc_%s.csv", selected, timestamp)
}

func treatmentRows(patientID string, value schema.TreatmentLines) [][]string {
	rows := make([][]string, 0, len(value.Linhas))
	for _, line := range value.Linhas {
		rows = append(rows, append([]string{patientID}, line.Row()...))
	}
	return rows
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(TreatmentColumns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RelapseSink writes relapse records as JSON.
type RelapseSink struct {
	mu      sync.Mutex
	records map[string]schema.Relapse
}

var _ Sink[schema.Relapse] = (*RelapseSink)(nil)

// NewRelapseSink creates an empty relapse sink.
func NewRelapseSink() *RelapseSink {
	return &RelapseSink{records: make(map[string]schema.Relapse)}
}

func (s *RelapseSink) Ext() string { return ".json" }

func (s *RelapseSink) Encode(_ string, value schema.Relapse) ([]byte, error) {
	return json.MarshalIndent(value, "", "    ")
}

func (s *RelapseSink) Add(patientID string, value schema.Relapse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[patientID] = value
}

// Aggregate returns a JSON object keyed by patient id.
func (s *RelapseSink) Aggregate() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.records, "", "    ")
}

func (s *RelapseSink) AggregateName(_ int, timestamp string) string {
	return fmt.Sprintf("tmo_rghc_%s.json", timestamp)
}
