// Package library declares the types, iterators, entry points and reduce
// operators that forall lowering relies on.
package library

import (
	"go/token"

	"github.com/mpyw/forall/internal/ir"
)

// Native implementation keys shared with the evaluator.
const (
	NativeRange        = "range"
	NativeCount        = "count"
	NativeSpan         = "span"
	NativeBlocks       = "blocks"
	NativeTrivial      = "trivial"
	NativeRangeLiteral = "range-literal"
	NativeEmit         = "emit"
	NativeFail         = "fail"
	NativeEntry        = "entry"
	NativeForward      = "forward"
)

// Reduce operator class names keyed by surface operator.
var reduceOps = []struct{ op, class string }{
	{"+", "SumReduceScanOp"},
	{"*", "ProductReduceScanOp"},
	{"max", "MaxReduceScanOp"},
	{"min", "MinReduceScanOp"},
	{"&&", "LogicalAndReduceScanOp"},
	{"||", "LogicalOrReduceScanOp"},
}

// Library holds handles on the declared library.
type Library struct {
	tree *ir.Tree

	Range  *ir.Type
	Vector *ir.Type

	rangeLeader *ir.Symbol

	reduce map[string]*ir.Symbol
}

// Declare adds the library to t.
func Declare(t *ir.Tree) *Library {
	l := &Library{
		tree:   t,
		reduce: make(map[string]*ir.Symbol),
	}
	l.Range = t.NewType("range", ir.TypeRecord)
	l.Vector = t.NewType("vector", ir.TypeRecord)
	l.Vector.RefIntent = true

	l.declareRange()
	l.declareVector()
	l.declareUserIterators()
	l.declareEntryPoints()
	l.declareReduceOps()
	return l
}

// ReduceOp returns the operator class for a surface operator such as "+".
func (l *Library) ReduceOp(op string) *ir.Symbol { return l.reduce[op] }

// ReduceOpName returns the surface operator of an operator class.
func (l *Library) ReduceOpName(class *ir.Symbol) string {
	for op, s := range l.reduce {
		if s == class {
			return op
		}
	}
	return ""
}

func (l *Library) arg(name string, typ *ir.Type) *ir.Symbol {
	return l.tree.NewArg(token.NoPos, name, typ)
}

func (l *Library) iterator(name string, tag ir.Tag, method bool, formals []*ir.Symbol, yield *ir.Type, native string) *ir.Symbol {
	info := &ir.FnInfo{
		Formals:  formals,
		Method:   method,
		Tag:      tag,
		Iterator: true,
		Native:   native,
	}
	if yield != nil {
		info.Yield = &ir.QualifiedType{Type: yield, Qual: ir.QualValue}
	}
	fn := l.tree.NewFn(token.NoPos, name, info)
	info.Ret = l.tree.IterRecordType(fn)
	return fn
}

func (l *Library) proc(name string, formals []*ir.Symbol, ret *ir.Type, native string) *ir.Symbol {
	return l.tree.NewFn(token.NoPos, name, &ir.FnInfo{
		Formals: formals,
		Ret:     ret,
		Native:  native,
	})
}

func (l *Library) generic(name string, arity int, infer func([]*ir.Type) *ir.Type) *ir.Symbol {
	formals := make([]*ir.Symbol, arity)
	for i := range formals {
		formals[i] = l.arg("x", nil)
	}
	return l.tree.NewFn(token.NoPos, name, &ir.FnInfo{
		Formals: formals,
		Infer:   infer,
		Native:  NativeEntry,
	})
}

func (l *Library) methodFormals(recv *ir.Type, extra ...*ir.Symbol) []*ir.Symbol {
	formals := []*ir.Symbol{l.arg("_mt", l.tree.MethodTokenType), l.arg("this", recv)}
	return append(formals, extra...)
}

func (l *Library) declareRange() {
	t := l.tree
	l.iterator("these", ir.TagNone, true, l.methodFormals(l.Range), t.Int, NativeRange)
	l.iterator("these", ir.TagStandalone, true, l.methodFormals(l.Range), t.Int, NativeRange)
	l.rangeLeader = l.iterator("these", ir.TagLeader, true, l.methodFormals(l.Range), l.Range, NativeRange)
	l.iterator("these", ir.TagFollower, true, l.methodFormals(l.Range, l.arg("followThis", nil)), t.Int, NativeRange)

	l.proc("chpl_build_bounded_range", []*ir.Symbol{l.arg("lo", t.Int), l.arg("hi", t.Int)}, l.Range, NativeRangeLiteral)
}

// declareVector declares a type whose leader is a plain procedure
// forwarding to the range leader.
func (l *Library) declareVector() {
	t := l.tree
	l.iterator("these", ir.TagNone, true, l.methodFormals(l.Vector), t.Int, NativeRange)
	fwd := l.proc("these", l.methodFormals(l.Vector), l.rangeLeader.Fn.Ret, NativeForward)
	fwd.Fn.Method = true
	fwd.Fn.Tag = ir.TagLeader
	l.iterator("these", ir.TagFollower, true, l.methodFormals(l.Vector, l.arg("followThis", nil)), t.Int, NativeRange)
}

func (l *Library) declareUserIterators() {
	t := l.tree
	n := func() []*ir.Symbol { return []*ir.Symbol{l.arg("n", t.Int)} }
	lohi := func() []*ir.Symbol { return []*ir.Symbol{l.arg("lo", t.Int), l.arg("hi", t.Int)} }
	follower := func(formals []*ir.Symbol) []*ir.Symbol {
		return append(formals, l.arg("followThis", nil))
	}

	// count: serial only.
	l.iterator("count", ir.TagNone, false, n(), t.Int, NativeCount)

	// span: serial, leader and follower; no standalone.
	l.iterator("span", ir.TagNone, false, lohi(), t.Int, NativeSpan)
	l.iterator("span", ir.TagLeader, false, lohi(), l.Range, NativeSpan)
	l.iterator("span", ir.TagFollower, false, follower(lohi()), t.Int, NativeSpan)

	// blocks: every flavor.
	l.iterator("blocks", ir.TagNone, false, n(), t.Int, NativeBlocks)
	l.iterator("blocks", ir.TagStandalone, false, n(), t.Int, NativeBlocks)
	blocksLeader := l.iterator("blocks", ir.TagLeader, false, n(), l.Range, NativeBlocks)
	l.iterator("blocks", ir.TagFollower, false, follower(n()), t.Int, NativeBlocks)

	// walk: every flavor; the standalone overload is recursive.
	l.iterator("walk", ir.TagNone, false, n(), t.Int, NativeBlocks)
	l.iterator("walk", ir.TagStandalone, false, n(), t.Int, NativeBlocks).Fn.Recursive = true
	l.iterator("walk", ir.TagLeader, false, n(), l.Range, NativeBlocks)
	l.iterator("walk", ir.TagFollower, false, follower(n()), t.Int, NativeBlocks)

	// badsa: the standalone overload is a plain procedure.
	l.iterator("badsa", ir.TagNone, false, n(), t.Int, NativeCount)
	sa := l.proc("badsa", n(), t.Int, NativeCount)
	sa.Fn.Tag = ir.TagStandalone

	// rec: the leader yield type cannot be inferred.
	l.iterator("rec", ir.TagNone, false, n(), t.Int, NativeCount)
	l.iterator("rec", ir.TagLeader, false, n(), nil, NativeCount)
	l.iterator("rec", ir.TagFollower, false, follower(n()), t.Int, NativeCount)

	// A forall-expression wrapper and the iterator it stands for.
	iter := l.iterator("chpl__loopexpr_iter1", ir.TagNone, false, n(), t.Int, NativeBlocks)
	l.iterator("chpl__loopexpr_iter1", ir.TagStandalone, false, n(), t.Int, NativeBlocks)
	l.iterator("chpl__loopexpr_iter1", ir.TagLeader, false, n(), l.Range, NativeBlocks)
	l.iterator("chpl__loopexpr_iter1", ir.TagFollower, false, follower(n()), t.Int, NativeBlocks)
	l.proc("chpl__forallexpr1", n(), iter.Fn.Ret, NativeForward)

	// A loop-expression leader forwarding to the blocks leader. Its second
	// formal carries an outer variable of the loop expression's body.
	lx := l.proc("chpl__loopexpr_iter2", []*ir.Symbol{l.arg("n", t.Int), l.arg("outer", nil)}, blocksLeader.Fn.Ret, NativeForward)
	lx.Fn.Tag = ir.TagLeader

	// Body helpers.
	l.proc("emit", []*ir.Symbol{l.arg("x", nil)}, t.Void, NativeEmit)
	l.proc("fail", nil, t.Void, NativeFail)
}

func (l *Library) declareEntryPoints() {
	t := l.tree

	toFollower := func(a []*ir.Type) *ir.Type { return l.followerRecord(a[0]) }
	toFollowerZip := func(a []*ir.Type) *ir.Type {
		return l.eachElem(a[0], l.followerRecord)
	}
	getIterator := func(a []*ir.Type) *ir.Type { return l.iterClass(a[0]) }
	getIteratorZip := func(a []*ir.Type) *ir.Type { return l.eachElem(a[0], l.iterClass) }
	boolean := func([]*ir.Type) *ir.Type { return t.Bool }
	index := func(a []*ir.Type) *ir.Type { return l.IndexType(a[0]) }

	l.generic("_toFollower", 2, toFollower)
	l.generic("_toFastFollower", 2, toFollower)
	l.generic("_toFollowerZip", 2, toFollowerZip)
	l.generic("_toFastFollowerZip", 2, toFollowerZip)
	l.generic("_getIterator", 1, getIterator)
	l.generic("_getIteratorZip", 1, getIteratorZip)
	l.generic("_freeIterator", 1, func([]*ir.Type) *ir.Type { return t.Void })
	l.generic("iteratorIndex", 1, index)
	l.generic("chpl__staticFastFollowCheck", 1, boolean)
	l.generic("chpl__staticFastFollowCheckZip", 1, boolean)
	l.generic("chpl__dynamicFastFollowCheck", 1, boolean)
	l.generic("chpl__dynamicFastFollowCheckZip", 1, boolean)
	l.generic("iteratorIndexType", 1, index)
	zipIndex := l.generic("iteratorIndexTypeZip", 1, func(a []*ir.Type) *ir.Type {
		elems := make([]*ir.Type, len(a))
		for i, e := range a {
			elems[i] = l.IndexType(e)
		}
		return t.TupleType(elems...)
	})
	zipIndex.Fn.Variadic = true

	l.iterator("chpl_trivialLeader", ir.TagNone, false, nil, t.Int, NativeTrivial)
}

func (l *Library) declareReduceOps() {
	for _, r := range reduceOps {
		typ := l.tree.NewType(r.class, ir.TypeReduceOp)
		l.reduce[r.op] = typ.Sym
	}
}

func (l *Library) eachElem(typ *ir.Type, f func(*ir.Type) *ir.Type) *ir.Type {
	if typ == nil || typ.Kind != ir.TypeTuple {
		return f(typ)
	}
	elems := make([]*ir.Type, len(typ.Elems))
	for i, e := range typ.Elems {
		elems[i] = f(e)
	}
	return l.tree.TupleType(elems...)
}

// SerialIterator returns the serial iterator used to iterate a value of typ.
func (l *Library) SerialIterator(typ *ir.Type) *ir.Symbol {
	if typ.IsIteratorRecord() {
		return typ.Iterator
	}
	return l.methodIterator(typ, ir.TagNone)
}

func (l *Library) methodIterator(typ *ir.Type, tag ir.Tag) *ir.Symbol {
	for _, fn := range l.tree.Fns("these") {
		if fn.Fn.Method && fn.Fn.Tag == tag && fn.Fn.Formals[1].Type == typ {
			return fn
		}
	}
	return nil
}

// Follower returns the follower overload matching a serial iterator.
func (l *Library) Follower(serial *ir.Symbol) *ir.Symbol {
	if serial == nil {
		return nil
	}
	for _, fn := range l.tree.Fns(serial.Name) {
		if fn.IsIterator() && fn.Fn.Tag == ir.TagFollower && fn.Fn.Method == serial.Fn.Method &&
			(!fn.Fn.Method || fn.Fn.Formals[1].Type == serial.Fn.Formals[1].Type) {
			return fn
		}
	}
	return nil
}

func (l *Library) followerRecord(typ *ir.Type) *ir.Type {
	if typ == nil {
		return l.tree.Unknown
	}
	if f := l.Follower(l.SerialIterator(typ)); f != nil {
		return f.Fn.Ret
	}
	return l.tree.Unknown
}

func (l *Library) iterClass(typ *ir.Type) *ir.Type {
	if typ == nil {
		return l.tree.Unknown
	}
	if it := l.SerialIterator(typ); it != nil {
		return l.tree.IterClassType(it)
	}
	return l.tree.Unknown
}

// IndexType returns the element type produced by iterating a value of typ.
func (l *Library) IndexType(typ *ir.Type) *ir.Type {
	switch {
	case typ == nil:
		return l.tree.Unknown
	case typ.Kind == ir.TypeTuple:
		return l.eachElem(typ, l.IndexType)
	case typ.Kind == ir.TypeIterRecord || typ.Kind == ir.TypeIterClass:
		if y := typ.Iterator.Fn.Yield; y != nil {
			return y.Type
		}
		return l.tree.Unknown
	}
	if it := l.SerialIterator(typ); it != nil && it.Fn.Yield != nil {
		return it.Fn.Yield.Type
	}
	return l.tree.Unknown
}
