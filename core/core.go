package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for executions, batches and tasks.
func NewID() string { return uuid.NewString() }
