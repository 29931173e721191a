package parser

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// YAMLParser decodes workflow definitions from YAML in strict mode:
// unknown fields are rejected so typos fail loudly.
type YAMLParser struct{}

// NewYAMLParser creates a YAML workflow parser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Parse decodes and validates a YAML workflow definition.
func (p *YAMLParser) Parse(data []byte) (*types.WorkflowDefinition, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var def types.WorkflowDefinition
	if err := decoder.Decode(&def); err != nil {
		return nil, types.NewConfigurationError("invalid workflow yaml").WithCause(err)
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseFile decodes and validates a YAML workflow definition file.
func (p *YAMLParser) ParseFile(path string) (*types.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewConfigurationError("read workflow file: " + path).WithCause(err)
	}
	return p.Parse(data)
}
