// Package types defines the core data structures for the workflow
// coordination engine.
//
// This package contains all the fundamental types shared across the engine,
// including:
//   - Workflow and step definitions with per-kind config variants
//   - Execution and step-level runtime records
//   - The workflow error taxonomy and its classification helpers
package types
