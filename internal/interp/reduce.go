package interp

import (
	"fmt"
	"math"

	"github.com/mpyw/forall/internal/ir"
)

// reducer combines values with a reduce operator.
type reducer struct {
	op string
}

// reducerOf returns the reducer of an instantiated reduce operator
// expression such as SumReduceScanOp(int).
func (in *Interpreter) reducerOf(opExpr *ir.Node) (reducer, error) {
	var class *ir.Symbol
	switch {
	case opExpr == nil:
	case opExpr.Kind == ir.KindSymExpr:
		class = opExpr.Sym
	case opExpr.Kind == ir.KindCall && opExpr.Base() != nil && opExpr.Base().Kind == ir.KindSymExpr:
		class = opExpr.Base().Sym
	}
	if class == nil {
		return reducer{}, fmt.Errorf("not a reduce operator: %s", opExpr)
	}
	op := in.lib.ReduceOpName(class)
	if op == "" {
		return reducer{}, fmt.Errorf("%s is not a reduce operator", class)
	}
	return reducer{op: op}, nil
}

// identity returns the neutral element for values shaped like typ.
func (r reducer) identity(typ *ir.Type) (Value, error) {
	if typ != nil && typ.Kind == ir.TypeTuple {
		t := make(Tuple, len(typ.Elems))
		for i, e := range typ.Elems {
			v, err := r.identity(e)
			if err != nil {
				return nil, err
			}
			t[i] = v
		}
		return t, nil
	}
	switch r.op {
	case "+":
		return int64(0), nil
	case "*":
		return int64(1), nil
	case "max":
		return int64(math.MinInt64), nil
	case "min":
		return int64(math.MaxInt64), nil
	case "&&":
		return true, nil
	case "||":
		return false, nil
	}
	return nil, fmt.Errorf("unknown reduce operator %q", r.op)
}

// combine folds b into a.
func (r reducer) combine(a, b Value) (Value, error) {
	if ta, ok := a.(Tuple); ok {
		tb, ok := b.(Tuple)
		if !ok || len(ta) != len(tb) {
			return nil, fmt.Errorf("cannot reduce %s with %s", Format(a), Format(b))
		}
		out := make(Tuple, len(ta))
		for i := range ta {
			v, err := r.combine(ta[i], tb[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	switch r.op {
	case "&&", "||":
		x, err := asBool(a)
		if err != nil {
			return nil, err
		}
		y, err := asBool(b)
		if err != nil {
			return nil, err
		}
		if r.op == "&&" {
			return x && y, nil
		}
		return x || y, nil
	}

	x, err := asInt(a)
	if err != nil {
		return nil, err
	}
	y, err := asInt(b)
	if err != nil {
		return nil, err
	}
	switch r.op {
	case "+":
		return x + y, nil
	case "*":
		return x * y, nil
	case "max":
		return max(x, y), nil
	case "min":
		return min(x, y), nil
	}
	return nil, fmt.Errorf("unknown reduce operator %q", r.op)
}
