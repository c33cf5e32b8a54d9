package result

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResultRow matches every *MalformedRowError.
	ErrMalformedResultRow = errors.New("malformed result row")

	// ErrMissingColumn is returned when the header lacks Gene or Score.
	ErrMissingColumn = errors.New("missing required column")
)

// MalformedRowError locates an unparseable row in a tool output table.
type MalformedRowError struct {
	File   string
	Line   int
	Value  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("%v: %s:%d: %s (%q)", ErrMalformedResultRow, e.File, e.Line, e.Reason, e.Value)
}

func (e *MalformedRowError) Is(target error) bool {
	return target == ErrMalformedResultRow
}
