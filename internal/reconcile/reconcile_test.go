package reconcile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTable(t *testing.T, doc string) *Table {
	t.Helper()
	table, err := ReadTable(strings.NewReader(doc), ReadOptions{})
	require.NoError(t, err)
	return table
}

func TestReadTable(t *testing.T) {
	table, err := ReadTable(strings.NewReader("RGHC;line_number;inducao_start\n10;1;01/02/2020\n11;1;nan\n"), ReadOptions{Comma: ';'})
	require.NoError(t, err)

	assert.Equal(t, []string{"rghc", "line_number", "inducao_start"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "01/02/2020", table.Rows[0].Get("inducao_start"))
	assert.Equal(t, "", table.Rows[1].Get("inducao_start"))
	assert.True(t, table.HasColumn("rghc"))

	_, err = ReadTable(strings.NewReader(""), ReadOptions{})
	assert.Error(t, err)
}

func TestTableWriteRoundTrip(t *testing.T) {
	table := mustTable(t, "rghc,inducao_medicamentos\n1,\"VRd, Dexametasona\"\n")

	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf))

	again := mustTable(t, buf.String())
	assert.Equal(t, table.Rows, again.Rows)
}

func TestVocabularyFilter(t *testing.T) {
	vocab := NewVocabulary([]string{"Dexametasona", "Bortezomibe", "VRd"})

	tests := []struct {
		in   string
		want string
	}{
		{"VRd, Dexametasona", "VRd, Dexametasona"},
		{"vrd,  dexametasona , hidratacao", "VRd, Dexametasona"},
		{"hidratacao, analgesia", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, vocab.Filter(tt.in), "Filter(%q)", tt.in)
	}
	assert.Equal(t, 3, vocab.Len())
}

func TestPreprocess(t *testing.T) {
	table := mustTable(t, "rghc,inducao_medicamentos,consolidacao_medicamentos\n1,\"VRd, soro\",\n2,Dexametasona,soro\n")
	vocab := NewVocabulary(DefaultDrugs)

	changed := Preprocess(table, vocab, []string{"inducao_medicamentos", "consolidacao_medicamentos"})

	assert.Equal(t, 2, changed)
	assert.Equal(t, "VRd", table.Rows[0].Get("inducao_medicamentos"))
	assert.Equal(t, "Dexametasona", table.Rows[1].Get("inducao_medicamentos"))
	assert.Equal(t, "", table.Rows[1].Get("consolidacao_medicamentos"))
}

func TestDatesAgree(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"29 days apart", "01/01/2020", "30/01/2020", true},
		{"30 days apart", "01/01/2020", "31/01/2020", true},
		{"31 days apart", "01/01/2020", "01/02/2020", false},
		{"symmetric", "01/02/2020", "01/01/2020", false},
		{"both absent", "", "", true},
		{"one absent", "01/01/2020", "", false},
		{"other absent", "nan", "01/01/2020", false},
		{"iso reference", "10/03/2021", "2021-03-01", true},
		{"unparseable", "inicio de 2020", "01/01/2020", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DatesAgree(tt.a, tt.b, DefaultToleranceDays))
		})
	}
}

func TestTextAgree(t *testing.T) {
	assert.True(t, TextAgree("VRd, Dexametasona", "Dexametasona, VRd"))
	assert.True(t, TextAgree("vrd,dexametasona", "Dexametasona , VRD"))
	assert.True(t, TextAgree("", ""))
	assert.False(t, TextAgree("VRd", ""))
	assert.False(t, TextAgree("VRd", "VTd"))
	assert.Equal(t, "dexametasona, vrd", CanonicalText("VRd, Dexametasona"))
}

func TestCompareLines(t *testing.T) {
	extracted := mustTable(t, "rghc,line_number\n1,1\n1,2\n2,1\n")
	reference := mustTable(t, "rghc,line_number\n1,1\n1,2\n1,3\n2,1\n3,1\n")

	report := CompareLines(extracted, reference, "rghc")

	require.Len(t, report.Patients, 3)
	assert.Equal(t, LineCount{PatientID: "1", Extracted: 2, Reference: 3, Difference: 1}, report.Patients[0])
	assert.Equal(t, LineCount{PatientID: "2", Extracted: 1, Reference: 1}, report.Patients[1])
	assert.Equal(t, LineCount{PatientID: "3", Reference: 1, Difference: 1}, report.Patients[2])
	assert.Equal(t, 2, report.Mismatched)
	assert.Equal(t, []string{"2"}, report.Agreeing())
}

func TestCompareFields(t *testing.T) {
	c := &Comparator{
		IDColumn:   "rghc",
		LineColumn: "line_number",
		Fields: []Field{
			{Name: "rghc", Kind: KindText},
			{Name: "inducao_start", Kind: KindDate},
			{Name: "inducao_medicamentos", Kind: KindText},
		},
		ToleranceDays: DefaultToleranceDays,
	}

	// Extracted rows are out of order; alignment must follow line_number.
	extracted := mustTable(t, "rghc,line_number,inducao_start,inducao_medicamentos\n"+
		"1,2,10/06/2021,\"Dexametasona, VRd\"\n"+
		"1,1,05/01/2020,VTd\n")
	reference := mustTable(t, "rghc,line_number,inducao_start,inducao_medicamentos\n"+
		"1,1,01/01/2020,VTd\n"+
		"1,2,01/09/2021,\"VRd, Dexametasona\"\n")

	report := c.CompareFields(extracted, reference, []string{"1"})

	assert.Equal(t, 4, report.Comparisons)
	assert.Equal(t, 3, report.Agreements)
	assert.InDelta(t, 0.75, report.Rate(), 1e-9)
	require.Len(t, report.ByField, 3)
	assert.Equal(t, FieldTally{Field: "rghc"}, report.ByField[0])
	assert.Equal(t, FieldTally{Field: "inducao_start", Agreements: 1, Comparisons: 2}, report.ByField[1])
	assert.Equal(t, FieldTally{Field: "inducao_medicamentos", Agreements: 2, Comparisons: 2}, report.ByField[2])

	require.Len(t, report.Diffs, 4)
	assert.Equal(t, "1", report.Diffs[0].LineNumber)
	assert.False(t, report.Diffs[2].Agree)
	assert.Equal(t, "10/06/2021", report.Diffs[2].Extracted)
}

func TestCompareExcludesMismatchedPatients(t *testing.T) {
	c := NewComparator()
	extracted := mustTable(t, "rghc,line_number,inducao_start\n1,1,01/01/2020\n1,2,01/01/2021\n2,1,01/01/2019\n")
	reference := mustTable(t, "rghc,line_number,inducao_start\n1,1,01/01/2020\n1,2,01/01/2021\n1,3,01/01/2022\n2,1,15/01/2019\n")

	report := c.Compare(extracted, reference)

	assert.Equal(t, 1, report.Structural.Mismatched)
	// Only patient 2 is compared: one line times every treatment field.
	assert.Equal(t, len(TreatmentFields()), report.Fields.Comparisons)
	for _, d := range report.Fields.Diffs {
		assert.Equal(t, "2", d.PatientID)
	}
}

func TestRunFiltersOnlyExtracted(t *testing.T) {
	c := NewComparator()
	c.Fields = []Field{{Name: "inducao_medicamentos", Kind: KindText}}
	vocab := NewVocabulary(DefaultDrugs)

	extracted := mustTable(t, "rghc,line_number,inducao_medicamentos\n"+
		"1,1,soro fisiologico\n"+
		"2,1,\"VRd, hidratacao\"\n")
	reference := mustTable(t, "rghc,line_number,inducao_medicamentos\n"+
		"1,1,Outros\n"+
		"2,1,vrd\n"+
		"3,1,VTd\n")

	report, cleaned := c.Run(extracted, reference, vocab, []string{"inducao_medicamentos"})

	assert.Equal(t, 2, cleaned)
	// Patient 3 is not in the extracted table and is left out entirely.
	require.Len(t, report.Structural.Patients, 2)
	assert.Equal(t, 2, report.Fields.Comparisons)
	// "Outros" is out of vocabulary but still ground truth: an empty
	// extraction disagrees with it.
	assert.Equal(t, 1, report.Fields.Agreements)
	require.Len(t, report.Fields.Diffs, 2)
	assert.Equal(t, "", report.Fields.Diffs[0].Extracted)
	assert.Equal(t, "Outros", report.Fields.Diffs[0].Reference)
	assert.False(t, report.Fields.Diffs[0].Agree)
	assert.True(t, report.Fields.Diffs[1].Agree)
	assert.Equal(t, "Outros", reference.Rows[0].Get("inducao_medicamentos"))
}

func TestRenameColumn(t *testing.T) {
	table := mustTable(t, "patient_id,line_number\n7,1\n")

	table.RenameColumn("patient_id", "rghc")

	assert.Equal(t, []string{"rghc", "line_number"}, table.Columns)
	assert.Equal(t, "7", table.Rows[0].Get("rghc"))
	_, stale := table.Rows[0]["patient_id"]
	assert.False(t, stale)

	table.RenameColumn("missing", "x")
	assert.Equal(t, []string{"rghc", "line_number"}, table.Columns)
}

func TestSortByLineKeepsUnnumberedOrder(t *testing.T) {
	rows := []Row{
		{"line_number": "", "tag": "a"},
		{"line_number": "2.0", "tag": "b"},
		{"line_number": "x", "tag": "c"},
		{"line_number": "1", "tag": "d"},
	}
	sorted := sortByLine(rows, "line_number")

	var tags []string
	for _, r := range sorted {
		tags = append(tags, r["tag"])
	}
	assert.Equal(t, []string{"d", "b", "a", "c"}, tags)
}

func TestWriteDiffCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDiffCSV(&buf, []DiffCell{{PatientID: "1", LineNumber: "1", Field: "radio_start", Extracted: "01/01/2020", Agree: false}})
	require.NoError(t, err)

	assert.Equal(t, "rghc,line_number,field,extracted,reference,agree\n1,1,radio_start,01/01/2020,,false\n", buf.String())
}
