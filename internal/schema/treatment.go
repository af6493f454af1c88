package schema

import (
	"strconv"
)

// DatePattern is the shape every date field must have after normalization.
// Calendar validity is not enforced here; see ParseDate.
const DatePattern = `^\d{2}/\d{2}/(\d{2}|\d{4})$`

// TreatmentLine is one episode of oncologic treatment. Optional fields use
// the empty string for "absent".
type TreatmentLine struct {
	LineNumber int `json:"line_number"`

	InducaoStart        string `json:"inducao_start,omitempty"`
	InducaoEnd          string `json:"inducao_end,omitempty"`
	InducaoMedicamentos string `json:"inducao_medicamentos,omitempty"`

	ConsolidacaoStart        string `json:"consolidacao_start,omitempty"`
	ConsolidacaoEnd          string `json:"consolidacao_end,omitempty"`
	ConsolidacaoMedicamentos string `json:"consolidacao_medicamentos,omitempty"`

	ManutencaoStart        string `json:"manutencao_start,omitempty"`
	ManutencaoEnd          string `json:"manutencao_end,omitempty"`
	ManutencaoMedicamentos string `json:"manutencao_medicamentos,omitempty"`

	RadioStart string `json:"radio_start,omitempty"`
	RadioEnd   string `json:"radio_end,omitempty"`

	TransplantDate string `json:"transplant_dt,omitempty"`
	TransplantType string `json:"transplant_type,omitempty"`
}

// TreatmentLines is the top-level extraction result for a patient.
type TreatmentLines struct {
	Linhas []TreatmentLine `json:"linhas"`
}

// Column names shared by extracted and reference tables.
const (
	ColumnPatientID  = "rghc"
	ColumnLineNumber = "line_number"
)

// TreatmentDateFields are the date-valued columns of a treatment line.
var TreatmentDateFields = []string{
	"inducao_start",
	"inducao_end",
	"consolidacao_start",
	"consolidacao_end",
	"manutencao_start",
	"manutencao_end",
	"radio_start",
	"radio_end",
	"transplant_dt",
}

// TreatmentDrugFields are the drug-list columns of a treatment line.
var TreatmentDrugFields = []string{
	"inducao_medicamentos",
	"consolidacao_medicamentos",
	"manutencao_medicamentos",
}

// TreatmentLabelColumns is the ordered list of comparable fields.
var TreatmentLabelColumns = []string{
	"inducao_start",
	"inducao_end",
	"inducao_medicamentos",
	"consolidacao_start",
	"consolidacao_end",
	"consolidacao_medicamentos",
	"manutencao_start",
	"manutencao_end",
	"manutencao_medicamentos",
	"radio_start",
	"radio_end",
	"transplant_dt",
	"transplant_type",
}

// TreatmentColumns is the tabular layout of a serialized TreatmentLine.
var TreatmentColumns = append([]string{ColumnLineNumber}, TreatmentLabelColumns...)

// Row returns the line's values in TreatmentColumns order.
func (l TreatmentLine) Row() []string {
	return []string{
		strconv.Itoa(l.LineNumber),
		l.InducaoStart,
		l.InducaoEnd,
		l.InducaoMedicamentos,
		l.ConsolidacaoStart,
		l.ConsolidacaoEnd,
		l.ConsolidacaoMedicamentos,
		l.ManutencaoStart,
		l.ManutencaoEnd,
		l.ManutencaoMedicamentos,
		l.RadioStart,
		l.RadioEnd,
		l.TransplantDate,
		l.TransplantType,
	}
}

func nullableDate(description string) map[string]any {
	return map[string]any{
		"type":        []string{"string", "null"},
		"pattern":     DatePattern,
		"description": description,
	}
}

func nullableText(description string) map[string]any {
	return map[string]any{
		"type":        []string{"string", "null"},
		"description": description,
	}
}

// TreatmentLineSchema is the JSON Schema for a single TreatmentLine.
var TreatmentLineSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"line_number": map[string]any{
			"type":        "integer",
			"minimum":     1,
			"description": "Número da linha de tratamento oncologico",
		},
		"inducao_start": nullableDate("Data de início da indução"),
		"inducao_end":   nullableDate("Data de término da indução"),
		"inducao_medicamentos": nullableText("Medicamentos utilizados durante a terapia de indução. " +
			"Pode ser VCd (Bortezomibe + Ciclofosfamida + Dexametasona) " +
			"ou VRd (Bortezomibe + Lenalidomida + Dexametasona) " +
			"ou VTD (Bortezomibe + Talidomida + Dexametasona) " +
			"ou Dara-VRd (Daratumumabe + VRd) ou Outros"),
		"consolidacao_start":        nullableDate("Data de início da consolidação"),
		"consolidacao_end":          nullableDate("Data de término da consolidação"),
		"consolidacao_medicamentos": nullableText("Medicamentos utilizados durante a terapia de consolidação. VRd ou VCd"),
		"manutencao_start":          nullableDate("Data de início da manutenção"),
		"manutencao_end":            nullableDate("Data de término da manutenção"),
		"manutencao_medicamentos": nullableText("Medicamentos utilizados durante a terapia de manutenção. " +
			"Talidomida ou Lenalidomida ou Bortezomibe ou Ixazomibe ou Outros"),
		"radio_start":     nullableDate("Data de início da radioterapia"),
		"radio_end":       nullableDate("Data de término da radioterapia"),
		"transplant_dt":   nullableDate("Data do transplante"),
		"transplant_type": nullableText("Tipo de transplante: 'autologo' ou 'alogenico'"),
	},
	"required": []string{"line_number"},
}

// TreatmentLinesSchema is the JSON Schema for TreatmentLines.
var TreatmentLinesSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"linhas": map[string]any{
			"type":  "array",
			"items": TreatmentLineSchema,
		},
	},
	"required": []string{"linhas"},
}
