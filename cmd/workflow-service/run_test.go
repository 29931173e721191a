package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags clears package-level flag targets; values would otherwise
// leak between Execute calls.
func resetFlags() {
	cfgFile, debug = "", false
	runFile, runInput, runOutput = "", "", ""
}

func writeWorkflow(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestRunCommandExecutesWorkflow(t *testing.T) {
	resetFlags()

	wf := writeWorkflow(t, "smoke.yaml", `id: smoke
steps:
  - id: calc
    kind: agent
    agent:
      kind: oee-calculator
  - id: gate
    kind: condition
    depends_on: [calc]
    condition:
      expression: "data.oee >= 0.5"
`)
	out := filepath.Join(t.TempDir(), "result.json")

	input := `{"planned_time_minutes": 480, "runtime_minutes": 432,` +
		` "ideal_cycle_time_seconds": 30, "total_count": 800, "good_count": 760}`
	rootCmd.SetArgs([]string{"run", "--file", wf, "--input", input, "--output", out})
	require.NoError(t, rootCmd.Execute())

	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	var exec map[string]any
	require.NoError(t, sonic.Unmarshal(raw, &exec))
	assert.Equal(t, "completed", exec["status"])
	assert.Equal(t, "smoke", exec["workflow_id"])

	output, ok := exec["output"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, output, "gate")
	assert.Contains(t, output, "calc")
}

func TestRunCommandReportsFailure(t *testing.T) {
	resetFlags()

	wf := writeWorkflow(t, "doomed.yaml", `id: doomed
steps:
  - id: probe
    kind: agent
    agent:
      kind: sensor-reader
`)

	rootCmd.SetArgs([]string{"run", "--file", wf})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent kind")
}

func TestRunCommandRejectsBadInput(t *testing.T) {
	resetFlags()

	wf := writeWorkflow(t, "smoke.yaml", `id: smoke
steps:
  - id: gate
    kind: condition
    condition:
      expression: "true"
`)

	rootCmd.SetArgs([]string{"run", "--file", wf, "--input", "not-json"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--input")
}
