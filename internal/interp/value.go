package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mpyw/forall/internal/ir"
)

// Value is a runtime value: int64, bool, Range, Tuple, *IterRecord,
// *FollowerRecord, *Handle, TypeValue or nil for void.
type Value any

// Range is the inclusive integer range Lo..Hi. Leader iterators yield
// ranges of element positions.
type Range struct {
	Lo, Hi int64
}

// Len returns the number of integers in r.
func (r Range) Len() int64 {
	if r.Hi < r.Lo {
		return 0
	}
	return r.Hi - r.Lo + 1
}

// Tuple is an ordered group of values.
type Tuple []Value

// IterRecord is the value of an iterator call.
type IterRecord struct {
	Fn   *ir.Symbol
	Args []Value
}

// FollowerRecord iterates the positions Follow of Iterable.
type FollowerRecord struct {
	Iterable Value
	Follow   Range
	Fast     bool
}

// Handle is an acquired iterator. Elements are materialized on
// acquisition.
type Handle struct {
	elems []Value
}

// TypeValue is a type used as a value.
type TypeValue struct {
	Type *ir.Type
}

// Format renders v the way emit prints it.
func Format(v Value) string {
	switch v := v.(type) {
	case nil:
		return "()"
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case Range:
		return fmt.Sprintf("%d..%d", v.Lo, v.Hi)
	case Tuple:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = Format(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *IterRecord:
		return "iter " + v.Fn.Name
	case *FollowerRecord:
		return fmt.Sprintf("follower %d..%d", v.Follow.Lo, v.Follow.Hi)
	case *Handle:
		return fmt.Sprintf("handle[%d]", len(v.elems))
	case TypeValue:
		return "type " + v.Type.String()
	}
	return fmt.Sprintf("%v", v)
}

// zeroValue returns the default value of typ.
func (in *Interpreter) zeroValue(typ *ir.Type) Value {
	switch {
	case typ == nil:
		return nil
	case typ == in.tree.Int:
		return int64(0)
	case typ == in.tree.Bool:
		return false
	case typ == in.lib.Range:
		return Range{Lo: 1, Hi: 0}
	case typ.Kind == ir.TypeTuple:
		t := make(Tuple, len(typ.Elems))
		for i, e := range typ.Elems {
			t[i] = in.zeroValue(e)
		}
		return t
	}
	return nil
}

func asInt(v Value) (int64, error) {
	i, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%s is not an integer", Format(v))
	}
	return i, nil
}

func asBool(v Value) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s is not a boolean", Format(v))
	}
	return b, nil
}
