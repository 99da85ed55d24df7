package catalog

import (
	"fmt"
	"strings"
)

// ValidationError reports every bad input the Builder saw, so the caller
// gets the full list in one pass instead of fixing names one at a time.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid catalog input: %s", strings.Join(e.Problems, "; "))
}

// SchemaError means the catalog's version marker is missing or unsupported.
// It is fatal for the whole catalog.
type SchemaError struct {
	Origin  string
	Version int
	Missing bool
}

func (e *SchemaError) Error() string {
	if e.Missing {
		return fmt.Sprintf("catalog %s: missing version record", e.Origin)
	}
	return fmt.Sprintf("catalog %s: unsupported catalog zone version (%d)", e.Origin, e.Version)
}

// MalformedEntryError describes one broken member record. Collected by the
// decoder; it never blocks the remaining entries.
type MalformedEntryError struct {
	Origin string
	Owner  string
	Reason string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("catalog %s: entry %s: %s", e.Origin, e.Owner, e.Reason)
}
