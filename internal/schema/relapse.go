package schema

// Relapse records whether a patient relapsed after transplant.
type Relapse struct {
	Relapse bool   `json:"relapse"`
	Date    string `json:"relapse_dt,omitempty"`
}

// RelapseSchema is the JSON Schema for Relapse.
var RelapseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"relapse": map[string]any{
			"type":        "boolean",
			"description": "O paciente teve uma recaída após o transplante.",
		},
		"relapse_dt": nullableDate("data da recidiva pós-transplante"),
	},
	"required": []string{"relapse"},
}
