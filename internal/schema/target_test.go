package schema

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTreatmentLinesTarget_Normalize(t *testing.T) {
	raw := `{"linhas": [
		{"line_number": 1, "inducao_start": "03/2019", "inducao_end": "05/13/19", "transplant_type": "Autólogo"},
		{"line_number": 2, "inducao_start": "", "radio_start": "logo depois", "transplant_type": "outro"}
	]}`

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	warnings := TreatmentLinesTarget.Apply(doc, discardLogger())

	lines := doc.(map[string]any)["linhas"].([]any)
	first := lines[0].(map[string]any)
	if first["inducao_start"] != "15/03/2019" {
		t.Errorf("inducao_start = %v, want 15/03/2019", first["inducao_start"])
	}
	if first["inducao_end"] != "13/05/2019" {
		t.Errorf("inducao_end = %v, want 13/05/2019", first["inducao_end"])
	}
	if first["transplant_type"] != "autologo" {
		t.Errorf("transplant_type = %v, want autologo", first["transplant_type"])
	}

	second := lines[1].(map[string]any)
	if second["inducao_start"] != nil {
		t.Errorf("blank inducao_start = %v, want nil", second["inducao_start"])
	}
	if second["radio_start"] != "logo depois" {
		t.Errorf("unparseable radio_start = %v, want unchanged", second["radio_start"])
	}

	// two rewrites, one unparseable date, one unknown transplant type
	if len(warnings) != 4 {
		t.Errorf("got %d warnings, want 4: %v", len(warnings), warnings)
	}
	if !strings.HasPrefix(warnings[0], "linhas[0]:") {
		t.Errorf("warning %q missing line prefix", warnings[0])
	}
}

func TestRelapseTarget_Normalize(t *testing.T) {
	doc := map[string]any{"relapse": true, "relapse_dt": "07/2022"}
	warnings := RelapseTarget.Apply(doc, discardLogger())
	if doc["relapse_dt"] != "15/07/2022" {
		t.Errorf("relapse_dt = %v, want 15/07/2022", doc["relapse_dt"])
	}
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(warnings))
	}
}

func TestTarget_JSONSchema(t *testing.T) {
	data, err := TreatmentLinesTarget.JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema() error = %v", err)
	}
	if !strings.Contains(string(data), `"linhas"`) {
		t.Error("schema missing linhas property")
	}
	if !strings.Contains(string(data), `"line_number"`) {
		t.Error("schema missing line_number property")
	}
}

func TestTreatmentLine_Row(t *testing.T) {
	line := TreatmentLine{LineNumber: 2, InducaoStart: "01/02/2020", TransplantType: "autologo"}
	row := line.Row()
	if len(row) != len(TreatmentColumns) {
		t.Fatalf("Row() has %d cells, want %d", len(row), len(TreatmentColumns))
	}
	if row[0] != "2" || row[1] != "01/02/2020" || row[len(row)-1] != "autologo" {
		t.Errorf("Row() = %v", row)
	}
}
