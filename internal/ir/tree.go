package ir

import (
	"go/token"
	"strconv"

	"github.com/mpyw/forall/internal/diag"
)

// Builtins are the symbols and types every tree starts with.
type Builtins struct {
	Int      *Type
	Bool     *Type
	Void     *Type
	Unknown  *Type
	IterKind *Type
	// MethodTokenType types the method token actual.
	MethodTokenType *Type

	True        *Symbol
	False       *Symbol
	MethodToken *Symbol
	Standalone  *Symbol
	Leader      *Symbol
	Follower    *Symbol
}

// Tree is the arena owning every node and symbol of a compilation.
type Tree struct {
	Fset *token.FileSet
	// Module is the root block of top-level statements.
	Module *Node
	Builtins

	nodes []*Node
	syms  []*Symbol
	roots []*Node

	types      map[string]*Type
	fns        map[string][]*Symbol
	immediates map[int64]*Symbol
	tuples     map[string]*Type
}

// NewTree creates a tree with an empty module and the builtin symbols.
func NewTree(fset *token.FileSet) *Tree {
	if fset == nil {
		fset = token.NewFileSet()
	}
	t := &Tree{
		Fset:       fset,
		types:      make(map[string]*Type),
		fns:        make(map[string][]*Symbol),
		immediates: make(map[int64]*Symbol),
		tuples:     make(map[string]*Type),
	}
	t.Module = t.NewRoot(nil)

	t.Int = t.NewType("int", TypePrim)
	t.Bool = t.NewType("bool", TypePrim)
	t.Void = t.NewType("void", TypePrim)
	t.Unknown = t.NewType("unknown", TypePrim)
	t.IterKind = t.NewType("iterKind", TypePrim)
	t.MethodTokenType = t.NewType("_MT", TypePrim)

	t.True = t.newConst("true", t.Bool, true)
	t.False = t.newConst("false", t.Bool, false)
	t.MethodToken = t.newConst("_mt", t.MethodTokenType, nil)
	t.Standalone = t.newConst("standalone", t.IterKind, TagStandalone)
	t.Leader = t.newConst("leader", t.IterKind, TagLeader)
	t.Follower = t.newConst("follower", t.IterKind, TagFollower)
	return t
}

// TagSymbol returns the constant naming tag.
func (t *Tree) TagSymbol(tag Tag) *Symbol {
	switch tag {
	case TagStandalone:
		return t.Standalone
	case TagLeader:
		return t.Leader
	case TagFollower:
		return t.Follower
	}
	diag.Assert(false, "no symbol for tag %s", tag)
	return nil
}

// Roots returns the module and every function body.
func (t *Tree) Roots() []*Node { return t.roots }

// NodeByID returns the node with the given ID.
func (t *Tree) NodeByID(id NodeID) *Node { return t.nodes[id] }

// SymbolByID returns the symbol with the given ID.
func (t *Tree) SymbolByID(id SymID) *Symbol { return t.syms[id] }

// NumNodes returns the number of nodes ever allocated.
func (t *Tree) NumNodes() int { return len(t.nodes) }

func (t *Tree) newNode(kind Kind, pos token.Pos) *Node {
	n := &Node{ID: NodeID(len(t.nodes)), Kind: kind, Pos: pos}
	if slots := kind.fixedSlots(); slots > 0 {
		n.kids = make([]*Node, slots)
	}
	t.nodes = append(t.nodes, n)
	return n
}

func (t *Tree) newSymbol(kind SymKind, pos token.Pos, name string, typ *Type) *Symbol {
	s := &Symbol{ID: SymID(len(t.syms)), Kind: kind, Pos: pos, Name: name, Type: typ}
	t.syms = append(t.syms, s)
	return s
}

// NewRoot creates a root block, owned by fn when fn is not nil.
func (t *Tree) NewRoot(fn *Symbol) *Node {
	b := t.newNode(KindBlock, token.NoPos)
	b.root = true
	b.Owner = fn
	t.roots = append(t.roots, b)
	if fn != nil {
		fn.Fn.Body = b
	}
	return b
}

// Block creates a block holding stmts.
func (t *Tree) Block(pos token.Pos, stmts ...*Node) *Node {
	b := t.newNode(KindBlock, pos)
	for _, s := range stmts {
		b.InsertAtTail(s)
	}
	return b
}

// ScopelessBlock creates a block that does not open a scope.
func (t *Tree) ScopelessBlock(pos token.Pos, stmts ...*Node) *Node {
	b := t.Block(pos, stmts...)
	b.Scopeless = true
	return b
}

// TypeBlock creates a block that is only resolved for types.
func (t *Tree) TypeBlock(pos token.Pos, stmts ...*Node) *Node {
	b := t.Block(pos, stmts...)
	b.TypeOnly = true
	return b
}

// List creates an anonymous list.
func (t *Tree) List(pos token.Pos, elems ...*Node) *Node {
	l := t.newNode(KindList, pos)
	for _, e := range elems {
		l.InsertAtTail(e)
	}
	return l
}

// Call creates a call of base with actuals.
func (t *Tree) Call(pos token.Pos, base *Node, args ...*Node) *Node {
	c := t.newNode(KindCall, pos)
	if base != nil {
		c.SetBase(base)
	}
	for _, a := range args {
		c.InsertAtTail(a)
	}
	return c
}

// CallName creates a call of an unresolved name.
func (t *Tree) CallName(pos token.Pos, name string, args ...*Node) *Node {
	return t.Call(pos, t.Unresolved(pos, name), args...)
}

// CallFn creates a call that names fn directly.
func (t *Tree) CallFn(pos token.Pos, fn *Symbol, args ...*Node) *Node {
	return t.Call(pos, t.Ref(pos, fn), args...)
}

// Prim creates a primitive call.
func (t *Tree) Prim(pos token.Pos, p Prim, args ...*Node) *Node {
	c := t.Call(pos, nil, args...)
	c.Prim = p
	return c
}

// Move creates move(lhs, rhs).
func (t *Tree) Move(pos token.Pos, lhs *Symbol, rhs *Node) *Node {
	return t.Prim(pos, PrimMove, t.Ref(pos, lhs), rhs)
}

// Ref creates a reference to sym.
func (t *Tree) Ref(pos token.Pos, sym *Symbol) *Node {
	diag.Assert(sym != nil, "Ref to nil symbol")
	r := t.newNode(KindSymExpr, pos)
	r.Sym = sym
	return r
}

// Unresolved creates a reference to a name.
func (t *Tree) Unresolved(pos token.Pos, name string) *Node {
	u := t.newNode(KindUnresolved, pos)
	u.Name = name
	return u
}

// Named creates the named actual name=expr.
func (t *Tree) Named(pos token.Pos, name string, expr *Node) *Node {
	n := t.newNode(KindNamed, pos)
	n.Name = name
	n.setSlot(0, expr)
	return n
}

// Def creates a definition of sym and links sym back to it.
func (t *Tree) Def(pos token.Pos, sym *Symbol, init, typeExpr *Node) *Node {
	d := t.newNode(KindDef, pos)
	d.Sym = sym
	if init != nil {
		d.setSlot(0, init)
	}
	if typeExpr != nil {
		d.setSlot(1, typeExpr)
	}
	sym.Def = d
	return d
}

// Cond creates a branch. els may be nil.
func (t *Tree) Cond(pos token.Pos, cond, then, els *Node) *Node {
	c := t.newNode(KindCond, pos)
	c.setSlot(0, cond)
	c.setSlot(1, then)
	if els != nil {
		c.setSlot(2, els)
	}
	return c
}

// Defer creates a deferred action.
func (t *Tree) Defer(pos token.Pos, body *Node) *Node {
	d := t.newNode(KindDefer, pos)
	d.setSlot(0, body)
	return d
}

// For creates a serial loop over the handle in iter. body becomes the only
// list element of the loop.
func (t *Tree) For(pos token.Pos, index, iter *Symbol, body *Node, zippered bool) *Node {
	f := t.newNode(KindFor, pos)
	f.Index = index
	f.Iter = iter
	f.Zippered = zippered
	if body != nil {
		f.InsertAtTail(body)
	}
	return f
}

// Forall creates a forall statement. indices and shadows are Def nodes.
func (t *Tree) Forall(pos token.Pos, iterables, indices, shadows []*Node, body *Node, info ForallInfo) *Node {
	fs := t.newNode(KindForall, pos)
	fs.setSlot(0, t.List(pos, iterables...))
	fs.setSlot(1, t.List(pos, indices...))
	fs.setSlot(2, t.List(pos, shadows...))
	if body == nil {
		body = t.Block(pos)
	}
	fs.setSlot(3, body)
	fs.Info = &info
	return fs
}

// NewVar creates a variable.
func (t *Tree) NewVar(pos token.Pos, name string, typ *Type) *Symbol {
	return t.newSymbol(SymVar, pos, name, typ)
}

// NewTemp creates a compiler temporary.
func (t *Tree) NewTemp(name string, typ *Type) *Symbol {
	s := t.newSymbol(SymVar, token.NoPos, name, typ)
	s.Add(FlagTemp)
	return s
}

// NewArg creates a formal argument.
func (t *Tree) NewArg(pos token.Pos, name string, typ *Type) *Symbol {
	return t.newSymbol(SymArg, pos, name, typ)
}

// NewShadow creates a shadow variable.
func (t *Tree) NewShadow(pos token.Pos, name string, info ShadowInfo) *Symbol {
	s := t.newSymbol(SymShadow, pos, name, nil)
	s.Shadow = &info
	return s
}

// NewFn creates a function symbol and adds it to the function table.
func (t *Tree) NewFn(pos token.Pos, name string, info *FnInfo) *Symbol {
	s := t.newSymbol(SymFn, pos, name, nil)
	s.Fn = info
	t.fns[name] = append(t.fns[name], s)
	return s
}

// Fns returns the functions declared under name, in declaration order.
func (t *Tree) Fns(name string) []*Symbol { return t.fns[name] }

// NewType declares a named type.
func (t *Tree) NewType(name string, kind TypeKind) *Type {
	diag.Assert(t.types[name] == nil, "type %q declared twice", name)
	typ := &Type{Kind: kind, Name: name}
	typ.Sym = t.newSymbol(SymType, token.NoPos, name, typ)
	t.types[name] = typ
	return typ
}

// LookupType returns the type declared under name or nil.
func (t *Tree) LookupType(name string) *Type { return t.types[name] }

// IterRecordType returns the iterator-record type of an iterator function.
func (t *Tree) IterRecordType(fn *Symbol) *Type {
	name := "_ir_" + fn.Name + "_" + strconv.Itoa(int(fn.ID))
	if typ := t.types[name]; typ != nil {
		return typ
	}
	typ := t.NewType(name, TypeIterRecord)
	typ.Iterator = fn
	return typ
}

// IterClassType returns the iterator-handle type of an iterator function.
func (t *Tree) IterClassType(fn *Symbol) *Type {
	name := "_ic_" + fn.Name + "_" + strconv.Itoa(int(fn.ID))
	if typ := t.types[name]; typ != nil {
		return typ
	}
	typ := t.NewType(name, TypeIterClass)
	typ.Iterator = fn
	return typ
}

// TupleType returns the tuple type over elems.
func (t *Tree) TupleType(elems ...*Type) *Type {
	name := "("
	for i, e := range elems {
		if i > 0 {
			name += ","
		}
		name += e.String()
	}
	name += ")"
	if typ := t.tuples[name]; typ != nil {
		return typ
	}
	typ := t.NewType(name, TypeTuple)
	typ.Elems = elems
	t.tuples[name] = typ
	return typ
}

// Imm returns the immediate symbol for v.
func (t *Tree) Imm(v int64) *Symbol {
	if s := t.immediates[v]; s != nil {
		return s
	}
	s := t.newConst(strconv.FormatInt(v, 10), t.Int, v)
	t.immediates[v] = s
	return s
}

// BoolSym returns the constant for b.
func (t *Tree) BoolSym(b bool) *Symbol {
	if b {
		return t.True
	}
	return t.False
}

func (t *Tree) newConst(name string, typ *Type, v any) *Symbol {
	s := t.newSymbol(SymConst, token.NoPos, name, typ)
	s.Value = v
	return s
}
