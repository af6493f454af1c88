package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNotes(t *testing.T) {
	doc := "rghc,data_dt,text\n1,2025-01-10,\"Paciente em uso de VRd, evolui bem\"\n,2025-01-11,sem id\n2,2025-02-01,outra nota\n"

	notes, err := ReadNotes(strings.NewReader(doc), DefaultNoteColumns(), 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, Note{PatientID: "1", Text: "Paciente em uso de VRd, evolui bem", Date: "2025-01-10"}, notes[0])

	_, err = ReadNotes(strings.NewReader("rghc,body\n1,x\n"), DefaultNoteColumns(), 0)
	assert.Error(t, err)
}

func TestReadNotesRejectsPathIDs(t *testing.T) {
	for _, id := range []string{"../etc", "a/b", `a\b`, ".."} {
		doc := "rghc,text\n1,ok\n\"" + id + "\",nota\n"
		_, err := ReadNotes(strings.NewReader(doc), DefaultNoteColumns(), 0)
		require.Error(t, err, "id %q", id)
		assert.Contains(t, err.Error(), "row 2")
	}

	assert.NoError(t, ValidatePatientID("12345"))
	assert.NoError(t, ValidatePatientID("a..b"))
}

func TestPatientIDsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePatientIDs(&buf, []string{"10", "20"}))

	ids, err := ReadPatientIDs(strings.NewReader(buf.String() + "\n# comment\n 30 \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "20", "30"}, ids)

	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	ids, err = LoadPatientIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "20"}, ids)
}

func TestSelectNotes(t *testing.T) {
	notes := []Note{
		{PatientID: "1"}, {PatientID: "2"}, {PatientID: "1"}, {PatientID: "3"}, {PatientID: "4"},
	}

	tests := []struct {
		name     string
		eligible []string
		cfg      RunConfig
		want     []string
	}{
		{"all notes", nil, DefaultRunConfig(), []string{"1", "2", "3", "4"}},
		{"eligible only", []string{"4", "2"}, DefaultRunConfig(), []string{"2", "4"}},
		{"empty eligibility list", []string{}, DefaultRunConfig(), nil},
		{"test mode", nil, RunConfig{Mode: ModeTest, SampleSize: 2}, []string{"1", "2"}},
		{"test mode after filter", []string{"3", "4"}, RunConfig{Mode: ModeTest, SampleSize: 1}, []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, n := range SelectNotes(notes, tt.eligible, tt.cfg) {
				got = append(got, n.PatientID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunConfig(t *testing.T) {
	mode, err := ParseMode(" TEST ")
	require.NoError(t, err)
	assert.Equal(t, ModeTest, mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, mode)

	_, err = ParseMode("partial")
	assert.Error(t, err)

	assert.NoError(t, DefaultRunConfig().Validate())
	assert.Error(t, RunConfig{Mode: ModeTest}.Validate())
	assert.Error(t, RunConfig{Mode: "other"}.Validate())
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "101.csv")

	require.NoError(t, writeFileAtomic(path, []byte("first")))
	require.NoError(t, writeFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
	assert.True(t, fileExists(path))
	assert.False(t, fileExists(dir))

	err = writeFileAtomic(filepath.Join(dir, "missing", "x.csv"), []byte("x"))
	assert.Error(t, err)
}
