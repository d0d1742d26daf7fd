package ir

import (
	"go/token"
	"strings"
)

// SymID is the arena index of a Symbol.
type SymID int32

// SymKind classifies a Symbol.
type SymKind uint8

const (
	SymVar SymKind = iota + 1
	SymArg
	SymFn
	SymType
	SymShadow
	// SymConst covers immediates, iterator tags, booleans and the method token.
	SymConst
)

// Flag is a single symbol attribute bit.
type Flag uint32

const (
	FlagTemp Flag = 1 << iota
	FlagIndexVar
	FlagIndexOfInterest
	FlagFollowerIndex
	FlagInsertAutoDestroy
	FlagNoAutoDestroy
	FlagConst
	FlagRefVar
	FlagExprTemp
	FlagMaybeParam
	FlagNoCopy
	FlagIterHandle
	FlagMaybeRef
	FlagTypeVariable
)

var flagNames = []struct {
	f    Flag
	name string
}{
	{FlagTemp, "temp"},
	{FlagIndexVar, "index-var"},
	{FlagIndexOfInterest, "index-of-interest"},
	{FlagFollowerIndex, "follower-index"},
	{FlagInsertAutoDestroy, "insert-auto-destroy"},
	{FlagNoAutoDestroy, "no-auto-destroy"},
	{FlagConst, "const"},
	{FlagRefVar, "ref-var"},
	{FlagExprTemp, "expr-temp"},
	{FlagMaybeParam, "maybe-param"},
	{FlagNoCopy, "no-copy"},
	{FlagIterHandle, "iter-handle"},
	{FlagMaybeRef, "maybe-ref"},
	{FlagTypeVariable, "type-variable"},
}

// Flags is a set of Flag bits.
type Flags uint32

// Has reports whether f is set.
func (fs Flags) Has(f Flag) bool { return fs&Flags(f) != 0 }

func (fs Flags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if fs.Has(fn.f) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, ",")
}

// Qualifier describes how a value is held.
type Qualifier uint8

const (
	QualValue Qualifier = iota
	QualConstValue
	QualRef
	QualConstRef
)

func (q Qualifier) String() string {
	switch q {
	case QualConstValue:
		return "const-val"
	case QualRef:
		return "ref"
	case QualConstRef:
		return "const-ref"
	}
	return "val"
}

// IsRef reports whether the qualifier denotes a reference.
func (q Qualifier) IsRef() bool { return q == QualRef || q == QualConstRef }

// QualifiedType pairs a type with its qualifier.
type QualifiedType struct {
	Type *Type
	Qual Qualifier
}

func (qt QualifiedType) String() string {
	if qt.Type == nil {
		return "?"
	}
	if qt.Qual == QualValue {
		return qt.Type.Name
	}
	return qt.Qual.String() + " " + qt.Type.Name
}

// TypeKind classifies a Type.
type TypeKind uint8

const (
	TypePrim TypeKind = iota + 1
	TypeRecord
	// TypeIterRecord is the value returned by calling an iterator.
	TypeIterRecord
	// TypeIterClass is the handle obtained from an iterator record.
	TypeIterClass
	TypeTuple
	TypeReduceOp
)

// Type is a resolved type. Every type is named by a SymType symbol.
type Type struct {
	Kind TypeKind
	Name string
	Sym  *Symbol

	// Iterator is the iterator function of an iterator record or class.
	Iterator *Symbol
	// Elems holds tuple components.
	Elems []*Type
	// RefIntent makes the default intent of this type a reference.
	RefIntent bool
}

// IsIteratorRecord reports whether t is the result type of an iterator call.
func (t *Type) IsIteratorRecord() bool { return t != nil && t.Kind == TypeIterRecord }

func (t *Type) String() string {
	if t == nil {
		return "?"
	}
	return t.Name
}

// Tag is the iterator tag formal a function accepts.
type Tag uint8

const (
	TagNone Tag = iota
	TagStandalone
	TagLeader
	TagFollower
)

func (t Tag) String() string {
	switch t {
	case TagStandalone:
		return "standalone"
	case TagLeader:
		return "leader"
	case TagFollower:
		return "follower"
	}
	return "serial"
}

// IteratorGroup collects the overloads reachable from one serial iterator.
// Followers are not part of the group; they are resolved when follow loops
// are built.
type IteratorGroup struct {
	Serial     *Symbol
	Standalone *Symbol
	Leader     *Symbol
	// NoniterSA and NoniterL are set when the matching overload is a
	// plain procedure rather than an iterator.
	NoniterSA bool
	NoniterL  bool
}

// FnInfo describes a function symbol.
type FnInfo struct {
	Formals []*Symbol
	// Method is set when the first actual is the method token.
	Method bool
	// Tag is the iterator tag the function requires, TagNone when it takes none.
	Tag      Tag
	Iterator bool
	// Yield is the iterator yield type. A nil Yield on an iterator means the
	// yield type could not be inferred, which happens for recursive iterators.
	Yield *QualifiedType
	// Ret is the return type of a procedure.
	Ret *Type
	// Infer computes a return type from actual types for generic procedures.
	Infer    func(actuals []*Type) *Type
	Variadic bool
	Inline   bool
	// Recursive is set by whole-program analysis on iterators that reach
	// themselves through their own body.
	Recursive bool
	// Native names the runtime implementation used by the evaluator.
	Native string
	Body   *Node
	// Group caches the iterator group of a serial iterator.
	Group *IteratorGroup
}

// Intent is the forall-intent tag of a shadow variable.
type Intent uint8

const (
	IntentDefault Intent = iota
	IntentConst
	IntentIn
	IntentConstIn
	IntentRef
	IntentConstRef
	IntentReduce
	IntentReduceOp
	IntentReduceParentAS
	IntentReduceParentOp
	IntentTaskPrivate
)

var intentNames = [...]string{
	IntentDefault:        "default",
	IntentConst:          "const",
	IntentIn:             "in",
	IntentConstIn:        "const in",
	IntentRef:            "ref",
	IntentConstRef:       "const ref",
	IntentReduce:         "reduce",
	IntentReduceOp:       "reduce-Op",
	IntentReduceParentAS: "parent-reduce-AS",
	IntentReduceParentOp: "parent-reduce-Op",
	IntentTaskPrivate:    "task-private",
}

func (i Intent) String() string {
	if int(i) < len(intentNames) {
		return intentNames[i]
	}
	return "unknown"
}

// HasOuter reports whether a shadow variable with this intent shadows an
// outer variable.
func (i Intent) HasOuter() bool {
	switch i {
	case IntentDefault, IntentConst, IntentIn, IntentConstIn,
		IntentRef, IntentConstRef, IntentReduce:
		return true
	}
	return false
}

// ShadowInfo describes a shadow-variable symbol.
type ShadowInfo struct {
	Intent Intent
	// OuterName is the name of the shadowed outer variable; Outer is bound
	// once the name is resolved. The outer variable is not owned.
	OuterName string
	Outer     *Symbol
	// ReduceOp is the reduce-operator expression. It is owned by the shadow
	// variable and never attached to the tree.
	ReduceOp *Node
	Resolved bool
}

// Symbol is a named program entity.
type Symbol struct {
	ID    SymID
	Kind  SymKind
	Name  string
	Pos   token.Pos
	Type  *Type
	Qual  Qualifier
	Flags Flags
	// Def is the defining node, nil for builtins and library declarations.
	Def *Node
	// Value holds the value of a SymConst.
	Value any

	Fn     *FnInfo
	Shadow *ShadowInfo
}

// Has reports whether f is set on s.
func (s *Symbol) Has(f Flag) bool { return s.Flags.Has(f) }

// Add sets flags on s.
func (s *Symbol) Add(fs ...Flag) {
	for _, f := range fs {
		s.Flags |= Flags(f)
	}
}

// Remove clears f on s.
func (s *Symbol) Remove(f Flag) { s.Flags &^= Flags(f) }

// QualType returns the qualified type of s.
func (s *Symbol) QualType() QualifiedType { return QualifiedType{Type: s.Type, Qual: s.Qual} }

// IsIterator reports whether s is an iterator function.
func (s *Symbol) IsIterator() bool { return s.Kind == SymFn && s.Fn != nil && s.Fn.Iterator }

// IsSerialIterator reports whether s is an iterator that takes no tag.
func (s *Symbol) IsSerialIterator() bool { return s.IsIterator() && s.Fn.Tag == TagNone }

func (s *Symbol) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}
