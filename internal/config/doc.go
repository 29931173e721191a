// Package config loads and validates the service configuration.
// Sources are layered: defaults, then the YAML file, then environment
// variables named by the field's env tag.
package config
