package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

const sampleYAML = `
id: shift-analysis
version: "1.2.0"
name: Shift analysis
steps:
  - id: collect
    kind: transform
    transform:
      name: coerce-number
      config:
        fields: [good_count, total_count]
  - id: oee
    kind: agent
    depends_on: [collect]
    agent:
      kind: oee-calculator
  - id: check
    kind: condition
    depends_on: [oee]
    condition:
      expression: data.oee < 0.6
  - id: drill-down
    kind: parallel
    depends_on: [check]
    parallel:
      max_concurrent: 2
      steps:
        - id: quality
          kind: agent
          agent:
            kind: quality-analyzer
        - id: downtime
          kind: agent
          agent:
            kind: downtime-analyzer
  - id: settle
    kind: delay
    depends_on: [drill-down]
    delay:
      duration: 2s
  - id: notify
    kind: webhook
    depends_on: [settle]
    guard: data.count > 0
    webhook:
      url: https://hooks.example.com/maintenance
      method: POST
      timeout: 5s
`

func TestYAMLParserParsesCompleteDefinition(t *testing.T) {
	def, err := NewYAMLParser().Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "shift-analysis", def.ID)
	assert.Equal(t, "1.2.0", def.Version)
	require.Len(t, def.Steps, 6)

	oee := def.StepByID("oee")
	require.NotNil(t, oee)
	assert.Equal(t, types.StepKindAgent, oee.Kind)
	assert.Equal(t, []string{"collect"}, oee.DependsOn)
	require.NotNil(t, oee.Agent)
	assert.Equal(t, "oee-calculator", oee.Agent.Kind)

	fanout := def.StepByID("drill-down")
	require.NotNil(t, fanout.Parallel)
	assert.Equal(t, 2, fanout.Parallel.MaxConcurrent)
	require.Len(t, fanout.Parallel.Steps, 2)

	settle := def.StepByID("settle")
	require.NotNil(t, settle.Delay)
	assert.Equal(t, 2*time.Second, settle.Delay.Duration)

	notify := def.StepByID("notify")
	require.NotNil(t, notify.Webhook)
	assert.Equal(t, 5*time.Second, notify.Webhook.Timeout)
	assert.Equal(t, "data.count > 0", notify.Guard)
}

func TestYAMLParserRejectsUnknownFields(t *testing.T) {
	src := `
id: wf
steps:
  - id: a
    kind: delay
    retries: 3
    delay:
      duration: 1s
`
	_, err := NewYAMLParser().Parse([]byte(src))
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
}

func TestJSONParserParsesDefinition(t *testing.T) {
	src := `{
  "id": "wf",
  "steps": [
    {"id": "a", "kind": "delay", "delay": {"duration": "150ms"}},
    {"id": "b", "kind": "transform", "depends_on": ["a"],
     "transform": {"name": "trim", "config": {"fields": ["line"]}}}
  ]
}`
	def, err := NewJSONParser().Parse([]byte(src))
	require.NoError(t, err)
	require.Len(t, def.Steps, 2)
	assert.Equal(t, 150*time.Millisecond, def.Steps[0].Delay.Duration)
	assert.Equal(t, "trim", def.Steps[1].Transform.Name)
}

func TestJSONParserRejectsUnknownFields(t *testing.T) {
	src := `{"id": "wf", "bogus": true, "steps": [{"id": "a", "kind": "delay", "delay": {"duration": "1s"}}]}`
	_, err := NewJSONParser().Parse([]byte(src))
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
}

func TestParseFilePicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "wf.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0o644))
	def, err := ParseFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "shift-analysis", def.ID)

	jsonPath := filepath.Join(dir, "wf.json")
	jsonSrc := `{"id": "wf", "steps": [{"id": "a", "kind": "delay", "delay": {"duration": "1s"}}]}`
	require.NoError(t, os.WriteFile(jsonPath, []byte(jsonSrc), 0o644))
	def, err = ParseFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "wf", def.ID)

	_, err = ParseFile(filepath.Join(dir, "wf.toml"))
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
}

func TestParseFileMissingFile(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
}
