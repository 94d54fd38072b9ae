package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/SAP-F-2025/exam-session-service/internal/grading"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	t.Run("table output", func(t *testing.T) {
		out, err := runRoot(t, "classify", "85", "78", "82", "76", "80", "79")
		require.NoError(t, err)
		assert.Contains(t, out, "General Average: 80.25%")
		assert.Contains(t, out, "Result: PASS")
	})

	t.Run("json output", func(t *testing.T) {
		out, err := runRoot(t, "classify", "--json", "85", "78", "82", "76", "80", "45")
		require.NoError(t, err)

		var result grading.WeightedResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, models.ResultDeferred, result.Status)
		assert.Len(t, result.RetakeSubjects, 1)
	})

	t.Run("wrong score count", func(t *testing.T) {
		_, err := runRoot(t, "classify", "85", "78")
		assert.ErrorContains(t, err, "expected 6 scores")
	})

	t.Run("no input", func(t *testing.T) {
		_, err := runRoot(t, "classify")
		assert.Error(t, err)
	})
}
