// Package parser loads workflow definitions from YAML or JSON and
// validates them before anything executes.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Parser decodes and validates a workflow definition.
type Parser interface {
	// Parse decodes a workflow definition from bytes and validates it.
	Parse(data []byte) (*types.WorkflowDefinition, error)

	// ParseFile decodes a workflow definition from a file and validates it.
	ParseFile(path string) (*types.WorkflowDefinition, error)
}

// ForFile picks the parser matching the file extension.
func ForFile(path string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLParser(), nil
	case ".json":
		return NewJSONParser(), nil
	}
	return nil, types.NewConfigurationError(fmt.Sprintf("unsupported workflow file extension: %s", filepath.Ext(path)))
}

// ParseFile loads a workflow definition, picking the format from the
// file extension.
func ParseFile(path string) (*types.WorkflowDefinition, error) {
	p, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	return p.ParseFile(path)
}
