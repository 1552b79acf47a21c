// Package uuid generates crawl run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUID v7 strings so run ids sort by start time.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Static returns the same id on every call. Used when a run id is supplied
// on the command line.
type Static string

// NewID returns the configured id, or an error when it is not a valid UUID.
func (s Static) NewID() (string, error) {
	id, err := uuid.Parse(string(s))
	if err != nil {
		return "", fmt.Errorf("parse run id %q: %w", string(s), err)
	}
	return id.String(), nil
}
