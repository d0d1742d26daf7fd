package interp

import (
	"context"
	"fmt"

	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
	"github.com/mpyw/forall/internal/registry"
)

func (in *Interpreter) evalCall(ctx context.Context, e *env, n *ir.Node) (Value, error) {
	fn := n.Fn
	if fn == nil {
		return nil, fmt.Errorf("unresolved call %s", n)
	}
	args, err := in.evalArgs(ctx, e, n)
	if err != nil {
		return nil, err
	}
	if fn.IsIterator() {
		return &IterRecord{Fn: fn, Args: args}, nil
	}

	switch fn.Fn.Native {
	case library.NativeRangeLiteral:
		lo, err := asInt(args[0])
		if err != nil {
			return nil, err
		}
		hi, err := asInt(args[1])
		if err != nil {
			return nil, err
		}
		return Range{Lo: lo, Hi: hi}, nil
	case library.NativeEmit:
		in.emit(args[0])
		return nil, nil
	case library.NativeFail:
		return nil, ErrFail
	case library.NativeForward:
		target := fn.Fn.Ret.Iterator
		if k := len(target.Fn.Formals); len(args) > k {
			args = args[:k]
		}
		return &IterRecord{Fn: target, Args: args}, nil
	case library.NativeEntry:
		op, ok := in.entries[fn.Name]
		if !ok {
			return nil, fmt.Errorf("%s is not a library entry point", fn)
		}
		return in.entry(op, n, args)
	}
	return nil, fmt.Errorf("cannot evaluate a call to %s", fn)
}

func (in *Interpreter) entry(op registry.Op, n *ir.Node, args []Value) (Value, error) {
	switch op {
	case registry.OpToFollower, registry.OpToFastFollower:
		return in.toFollower(args[0], args[1], op == registry.OpToFastFollower)
	case registry.OpToFollowerZip, registry.OpToFastFollowerZip:
		t, ok := args[0].(Tuple)
		if !ok {
			return nil, fmt.Errorf("zippered follower over %s", Format(args[0]))
		}
		out := make(Tuple, len(t))
		for i, it := range t {
			f, err := in.toFollower(it, args[1], op == registry.OpToFastFollowerZip)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	case registry.OpGetIterator, registry.OpGetIteratorZip:
		elems, err := in.elements(args[0])
		if err != nil {
			return nil, err
		}
		in.acquired.Add(1)
		return &Handle{elems: elems}, nil
	case registry.OpFreeIterator:
		if _, ok := args[0].(*Handle); !ok {
			return nil, fmt.Errorf("freeing %s, which is not an iterator", Format(args[0]))
		}
		in.released.Add(1)
		return nil, nil
	case registry.OpIteratorIndex:
		return nil, nil
	case registry.OpStaticFastFollowCheck, registry.OpStaticFastFollowCheckZip,
		registry.OpDynamicFastFollowCheck, registry.OpDynamicFastFollowCheckZip:
		return in.fastFollowOK(args[0]), nil
	case registry.OpIteratorIndexType, registry.OpIteratorIndexTypeZip:
		return TypeValue{Type: n.Type}, nil
	}
	return nil, fmt.Errorf("entry point %s cannot be called at run time", n.CalleeName())
}

func (in *Interpreter) toFollower(iterable, follow Value, fast bool) (*FollowerRecord, error) {
	r, ok := follow.(Range)
	if !ok {
		return nil, fmt.Errorf("follower share %s is not a range", Format(follow))
	}
	if fast {
		in.fast.Add(1)
	} else {
		in.general.Add(1)
	}
	return &FollowerRecord{Iterable: iterable, Follow: r, Fast: fast}, nil
}

// fastFollowOK allows the fast follower unless a zippered component is
// itself a tuple.
func (in *Interpreter) fastFollowOK(v Value) bool {
	t, ok := v.(Tuple)
	if !ok {
		return true
	}
	for _, e := range t {
		if _, nested := e.(Tuple); nested {
			return false
		}
	}
	return true
}

// elements materializes what iterating v yields.
func (in *Interpreter) elements(v Value) ([]Value, error) {
	switch v := v.(type) {
	case Range:
		return rangeElems(v), nil
	case *Handle:
		return v.elems, nil
	case *FollowerRecord:
		all, err := in.elements(v.Iterable)
		if err != nil {
			return nil, err
		}
		return sliceShare(all, v.Follow)
	case Tuple:
		return in.zipElems(v)
	case *IterRecord:
		return in.iterElems(v)
	}
	return nil, fmt.Errorf("cannot iterate %s", Format(v))
}

func (in *Interpreter) zipElems(t Tuple) ([]Value, error) {
	cols := make([][]Value, len(t))
	for i, it := range t {
		elems, err := in.elements(it)
		if err != nil {
			return nil, err
		}
		if i > 0 && len(elems) != len(cols[0]) {
			return nil, fmt.Errorf("zippered iterations have non-equal lengths: %d and %d", len(cols[0]), len(elems))
		}
		cols[i] = elems
	}
	if len(cols) == 0 {
		return nil, nil
	}
	rows := make([]Value, len(cols[0]))
	for r := range rows {
		row := make(Tuple, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		rows[r] = row
	}
	return rows, nil
}

// iterElems materializes an iterator call. Leaders yield position ranges
// over the serial elements, one per task; followers yield the elements at
// the positions of their last argument.
func (in *Interpreter) iterElems(rec *IterRecord) ([]Value, error) {
	switch rec.Fn.Fn.Tag {
	case ir.TagLeader:
		elems, err := in.serialElems(rec.Fn, rec.Args)
		if err != nil {
			return nil, err
		}
		return in.shares(int64(len(elems))), nil
	case ir.TagFollower:
		if len(rec.Args) == 0 {
			return nil, fmt.Errorf("follower %s without a share", rec.Fn)
		}
		follow, ok := rec.Args[len(rec.Args)-1].(Range)
		if !ok {
			return nil, fmt.Errorf("follower share %s is not a range", Format(rec.Args[len(rec.Args)-1]))
		}
		elems, err := in.serialElems(rec.Fn, rec.Args[:len(rec.Args)-1])
		if err != nil {
			return nil, err
		}
		return sliceShare(elems, follow)
	}
	return in.serialElems(rec.Fn, rec.Args)
}

func (in *Interpreter) serialElems(fn *ir.Symbol, args []Value) ([]Value, error) {
	ints := func(i int) (int64, error) {
		if i >= len(args) {
			return 0, fmt.Errorf("%s: missing argument %d", fn, i+1)
		}
		return asInt(args[i])
	}
	switch fn.Fn.Native {
	case library.NativeRange:
		for i := len(args) - 1; i >= 0; i-- {
			if r, ok := args[i].(Range); ok {
				return rangeElems(r), nil
			}
		}
		return nil, fmt.Errorf("%s: no range argument", fn)
	case library.NativeCount, library.NativeBlocks:
		n, err := ints(0)
		if err != nil {
			return nil, err
		}
		return rangeElems(Range{Lo: 1, Hi: n}), nil
	case library.NativeSpan:
		lo, err := ints(0)
		if err != nil {
			return nil, err
		}
		hi, err := ints(1)
		if err != nil {
			return nil, err
		}
		return rangeElems(Range{Lo: lo, Hi: hi}), nil
	case library.NativeTrivial:
		return []Value{int64(0)}, nil
	}
	return nil, fmt.Errorf("iterator %s has no run-time implementation", fn)
}

// shares splits n positions into at most cfg.Tasks contiguous ranges.
func (in *Interpreter) shares(n int64) []Value {
	tasks := min(int64(in.cfg.Tasks), n)
	out := make([]Value, 0, tasks)
	var lo int64
	for i := range tasks {
		size := n / tasks
		if i < n%tasks {
			size++
		}
		out = append(out, Range{Lo: lo, Hi: lo + size - 1})
		lo += size
	}
	return out
}

func sliceShare(elems []Value, r Range) ([]Value, error) {
	if r.Len() == 0 {
		return nil, nil
	}
	if r.Lo < 0 || r.Hi >= int64(len(elems)) {
		return nil, fmt.Errorf("share %s outside %d elements", Format(r), len(elems))
	}
	return elems[r.Lo : r.Hi+1], nil
}

func rangeElems(r Range) []Value {
	out := make([]Value, 0, r.Len())
	for i := r.Lo; i <= r.Hi; i++ {
		out = append(out, i)
	}
	return out
}
