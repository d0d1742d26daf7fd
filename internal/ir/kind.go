package ir

// Kind identifies the shape of a Node.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindBlock is a statement list, optionally scopeless or type-only.
	KindBlock
	// KindList is an anonymous ordered list owned by a forall statement.
	KindList
	// KindCall is a call: callee slot followed by actuals. Primitive calls
	// have an empty callee slot.
	KindCall
	// KindSymExpr references a Symbol.
	KindSymExpr
	// KindUnresolved references a name not yet bound to a Symbol.
	KindUnresolved
	// KindNamed is a named actual such as tag=leader.
	KindNamed
	// KindDef defines a Symbol with optional init and type expressions.
	KindDef
	// KindForall is a forall statement.
	KindForall
	// KindFor is a serial loop over an iterator handle.
	KindFor
	// KindCond is a two-way branch.
	KindCond
	// KindDefer runs its slot when the enclosing block exits.
	KindDefer
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindBlock:      "block",
	KindList:       "list",
	KindCall:       "call",
	KindSymExpr:    "symexpr",
	KindUnresolved: "unresolved",
	KindNamed:      "named",
	KindDef:        "def",
	KindForall:     "forall",
	KindFor:        "for",
	KindCond:       "cond",
	KindDefer:      "defer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// listStart returns the first child index with list semantics, or -1 when
// every child of the kind lives in a fixed slot.
func (k Kind) listStart() int {
	switch k {
	case KindBlock, KindList, KindFor:
		return 0
	case KindCall:
		return 1
	}
	return -1
}

// fixedSlots returns the number of fixed slots a node of this kind starts with.
func (k Kind) fixedSlots() int {
	switch k {
	case KindCall, KindNamed, KindDefer:
		return 1
	case KindDef:
		return 2
	case KindCond:
		return 3
	case KindForall:
		return 4
	}
	return 0
}

// Prim identifies a primitive operation carried by a Call.
type Prim uint8

const (
	PrimNone Prim = iota
	// PrimMove assigns its second actual to the symbol in its first.
	PrimMove
	// PrimZip aggregates iterables for lock-step iteration.
	PrimZip
	// PrimNoop marks a position and does nothing.
	PrimNoop
	// PrimReduce is a reduce expression: operator, data, zippered flag.
	PrimReduce
	// PrimReduceAssign accumulates into a reduce shadow variable.
	PrimReduceAssign
	// PrimAddAssign is lhs += rhs.
	PrimAddAssign
	// PrimBuildTuple builds a tuple from its actuals.
	PrimBuildTuple
	// PrimTupleGet selects a 1-based tuple component.
	PrimTupleGet
	// PrimAdd is lhs + rhs.
	PrimAdd
	// PrimReduceIdentity is the identity of the reduce operator in its
	// actual, shaped like the call's type.
	PrimReduceIdentity
)

var primNames = [...]string{
	PrimNone:           "",
	PrimMove:           "move",
	PrimZip:            "zip",
	PrimNoop:           "noop",
	PrimReduce:         "reduce",
	PrimReduceAssign:   "reduce=",
	PrimAddAssign:      "+=",
	PrimBuildTuple:     "build_tuple",
	PrimTupleGet:       "tuple_get",
	PrimAdd:            "+",
	PrimReduceIdentity: "reduce_identity",
}

func (p Prim) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return "?"
}
