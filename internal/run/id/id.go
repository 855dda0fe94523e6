// Package id provides unique identifier generation for pipeline runs.
package id

import "github.com/google/uuid"

// Generate creates a new unique run ID.
// Format: run-<uuid>
// Example: run-9f3c2a67-0b7e-4c25-9a61-1d2f3e4a5b6c
func Generate() string {
	return "run-" + uuid.NewString()
}
