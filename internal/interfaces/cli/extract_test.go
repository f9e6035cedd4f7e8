package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MedRx-Intelligence/internal/intelligence/rxextractor"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

const sampleRx = "Rx: Amoxicillin 500mg three times daily after meals for 7 days"

func runExtract(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"extract"}, args...))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}

	err := cmd.Execute()
	return out.String(), err
}

func TestExtractCommand_TextFlag(t *testing.T) {
	out, err := runExtract(t, "", "--text", sampleRx, "-o", "json")
	require.NoError(t, err)

	var result rxextractor.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	require.GreaterOrEqual(t, result.RecordCount, 1)
	assert.False(t, result.Degraded)

	found := false
	for _, rec := range result.Records {
		if strings.Contains(strings.ToLower(rec.Name), "amoxicillin") {
			found = true
			assert.NotEmpty(t, rec.Dosage)
		}
	}
	assert.True(t, found, "expected an amoxicillin record, got %+v", result.Records)
}

func TestExtractCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rx.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleRx), 0o600))

	out, err := runExtract(t, "", path)
	require.NoError(t, err)
	assert.Contains(t, out, "record(s)")
}

func TestExtractCommand_Stdin(t *testing.T) {
	out, err := runExtract(t, sampleRx, "-")
	require.NoError(t, err)
	assert.Contains(t, out, "record(s)")
}

func TestExtractCommand_NoInput(t *testing.T) {
	_, err := runExtract(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to extract")
}

func TestExtractCommand_DegradedText(t *testing.T) {
	// Below the ten character floor: extraction degrades instead of failing.
	out, err := runExtract(t, "", "--text", "abc", "-o", "json")
	require.NoError(t, err)

	var result rxextractor.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Degraded)
	assert.Empty(t, result.Records)
}

func TestReadExtractInput_TextWins(t *testing.T) {
	// The flag takes priority, so the named file must not even be opened.
	got, err := readExtractInput(&cobra.Command{}, []string{"does-not-exist.txt"}, "inline text")
	require.NoError(t, err)
	assert.Equal(t, "inline text", got)
}

func TestReadExtractInput_MissingFile(t *testing.T) {
	_, err := readExtractInput(&cobra.Command{}, []string{"does-not-exist.txt"}, "")
	require.Error(t, err)
}

func TestExtractionReport_Table(t *testing.T) {
	report := extractionReport{&rxextractor.ExtractionResult{
		Records: []medication.MedicationRecord{
			{Name: "Amoxicillin", Dosage: "500mg", Frequency: "TDS", Duration: "7 days", Confidence: 0.85},
			{Name: "Paracetamol", Dosage: "650mg", Confidence: 0.6},
		},
		RecordCount: 2,
	}}

	headers := report.TableHeaders()
	assert.Equal(t, []string{"NAME", "DOSAGE", "FREQUENCY", "DURATION", "CONFIDENCE"}, headers)

	rows := report.TableRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Amoxicillin", rows[0][0])
	assert.Equal(t, "0.85", rows[0][4])
}

func TestExtractionReport_String(t *testing.T) {
	report := extractionReport{&rxextractor.ExtractionResult{
		Degraded:       true,
		DegradedReason: "text quality below threshold",
	}}

	s := report.String()
	assert.Contains(t, s, "degraded: text quality below threshold")
	assert.Contains(t, s, "0 record(s)")
}
