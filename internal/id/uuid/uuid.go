// Package uuid provides run ID generation.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUID v7 run IDs.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7.
func (Generator) NewID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid7: %w", err)
	}
	return id, nil
}

// Fixed always returns the same ID. Tests use it to pin run IDs.
type Fixed uuid.UUID

// NewID returns the fixed ID.
func (f Fixed) NewID() (uuid.UUID, error) {
	return uuid.UUID(f), nil
}
