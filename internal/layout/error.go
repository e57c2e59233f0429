package layout

import (
	"fmt"
	"strings"

	"tarn/internal/types"
)

// FlattenErrorKind enumerates flattening failures.
type FlattenErrorKind uint8

const (
	// FlattenErrUnknownType indicates a TypeID the interner does not know.
	FlattenErrUnknownType FlattenErrorKind = iota + 1
	// FlattenErrMissingInfo indicates a transparent aggregate whose field
	// structure was never resolved.
	FlattenErrMissingInfo
	// FlattenErrRecursive indicates a value type containing itself.
	FlattenErrRecursive
	// FlattenErrBadField indicates a field index out of range.
	FlattenErrBadField
	// FlattenErrNotAggregate indicates a field query on a non-aggregate.
	FlattenErrNotAggregate
)

// FlattenError reports why a type could not be flattened. These are internal
// invariant violations, not user diagnostics.
type FlattenError struct {
	Kind  FlattenErrorKind
	Type  types.TypeID
	Field int
	Cycle []types.TypeID
}

func (e *FlattenError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case FlattenErrUnknownType:
		return fmt.Sprintf("unknown type (type#%d)", e.Type)
	case FlattenErrMissingInfo:
		return fmt.Sprintf("aggregate type#%d has no resolved field structure", e.Type)
	case FlattenErrRecursive:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite flattening (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite flattening (cycle: %s)", strings.Join(parts, " -> "))
	case FlattenErrBadField:
		return fmt.Sprintf("field %d out of range for type#%d", e.Field, e.Type)
	case FlattenErrNotAggregate:
		return fmt.Sprintf("type#%d has no addressable fields", e.Type)
	default:
		return fmt.Sprintf("flatten error kind=%d type#%d", e.Kind, e.Type)
	}
}
