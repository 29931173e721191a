package parser

import (
	"os"

	"github.com/bytedance/sonic"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// strictJSON mirrors the YAML parser's strict mode.
var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

// JSONParser decodes workflow definitions from JSON.
type JSONParser struct{}

// NewJSONParser creates a JSON workflow parser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse decodes and validates a JSON workflow definition.
func (p *JSONParser) Parse(data []byte) (*types.WorkflowDefinition, error) {
	var def types.WorkflowDefinition
	if err := strictJSON.Unmarshal(data, &def); err != nil {
		return nil, types.NewConfigurationError("invalid workflow json").WithCause(err)
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseFile decodes and validates a JSON workflow definition file.
func (p *JSONParser) ParseFile(path string) (*types.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewConfigurationError("read workflow file: " + path).WithCause(err)
	}
	return p.Parse(data)
}
