package service

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports per-field validation failures detected before any
// remote call is made.
type ValidationError struct {
	// Fields maps field name to a human-readable message.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}
