package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abelbrown/mentions/internal/model"
)

var (
	// ErrUnrecognizedSchema is matched by *UnrecognizedSchemaError.
	ErrUnrecognizedSchema = errors.New("unrecognized schema")

	// ErrMalformedRecord is matched by *MalformedRecordError.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrShapeConflict is matched by *ShapeConflictError.
	ErrShapeConflict = errors.New("shape conflict")
)

// maxReportedKeys caps the key list carried for diagnostics.
const maxReportedKeys = 20

// UnrecognizedSchemaError reports a payload that matches none of the known
// export shapes. Keys is the top-level key set (element keys for arrays).
type UnrecognizedSchemaError struct {
	Source string
	Keys   []string
	Array  bool
	Reason string
}

func (e *UnrecognizedSchemaError) Error() string {
	what := "top-level keys"
	if e.Array {
		what = "element keys"
	}
	msg := fmt.Sprintf("schema: unrecognized payload %q: %s [%s]", e.Source, what, strings.Join(e.Keys, " "))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnrecognizedSchemaError) Is(target error) bool {
	return target == ErrUnrecognizedSchema
}

func newUnrecognized(source string, keys []string, array bool, reason string) *UnrecognizedSchemaError {
	if len(keys) > maxReportedKeys {
		keys = append(keys[:maxReportedKeys:maxReportedKeys], "…")
	}
	return &UnrecognizedSchemaError{Source: source, Keys: keys, Array: array, Reason: reason}
}

// MalformedRecordError describes a single record that was dropped. It is
// collected on the Normalized result, never returned for a whole payload.
type MalformedRecordError struct {
	Source string
	Path   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("schema: malformed record %s in %q: %s", e.Path, e.Source, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// ShapeConflictError reports a payload whose shape belongs to a different
// result family than the one already chosen for the load.
type ShapeConflictError struct {
	Source string
	Shape  Shape
	Want   model.ResultKind
}

func (e *ShapeConflictError) Error() string {
	return fmt.Sprintf("schema: payload %q has shape %s, load is %s", e.Source, e.Shape, e.Want)
}

func (e *ShapeConflictError) Is(target error) bool {
	return target == ErrShapeConflict
}
