package ir

import (
	"go/token"
	"slices"

	"github.com/mpyw/forall/internal/diag"
)

// NodeID is the arena index of a Node.
type NodeID int32

// Node is an element of the program tree.
type Node struct {
	ID   NodeID
	Kind Kind
	Pos  token.Pos

	// Prim is the primitive of a KindCall, PrimNone for ordinary calls.
	Prim Prim
	// Fn is the resolved callee of a KindCall.
	Fn *Symbol
	// Type is the result type of a resolved KindCall.
	Type *Type
	// Sym is the referenced symbol of a KindSymExpr or the defined symbol
	// of a KindDef.
	Sym *Symbol
	// Name is the name of a KindUnresolved or KindNamed.
	Name string

	// Scopeless blocks do not open a scope. TypeOnly blocks are resolved for
	// their types and never executed.
	Scopeless bool
	TypeOnly  bool

	// Index and Iter are the loop index and iterator handle of a KindFor.
	Index    *Symbol
	Iter     *Symbol
	Zippered bool

	// Owner is the function owning a root body block.
	Owner *Symbol

	// Info carries forall statement data.
	Info *ForallInfo

	parent *Node
	root   bool
	kids   []*Node
}

// Parent returns the owning node, nil for detached nodes and roots.
func (n *Node) Parent() *Node { return n.parent }

// IsRoot reports whether n is a tree root.
func (n *Node) IsRoot() bool { return n.root }

// InTree reports whether n is reachable from a root.
func (n *Node) InTree() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.root {
			return true
		}
	}
	return false
}

// Kids returns all child slots. Empty fixed slots are nil. The slice must
// not be modified.
func (n *Node) Kids() []*Node { return n.kids }

// Len returns the number of list elements.
func (n *Node) Len() int {
	start := n.Kind.listStart()
	if start < 0 {
		return 0
	}
	return len(n.kids) - start
}

// At returns list element i.
func (n *Node) At(i int) *Node {
	start := n.Kind.listStart()
	diag.Assert(start >= 0, "At on %s", n.Kind)
	return n.kids[start+i]
}

// List returns the list elements. The slice must not be modified.
func (n *Node) List() []*Node {
	start := n.Kind.listStart()
	if start < 0 {
		return nil
	}
	return n.kids[start:]
}

// First returns the first list element or nil.
func (n *Node) First() *Node {
	if n.Len() == 0 {
		return nil
	}
	return n.At(0)
}

// Last returns the last list element or nil.
func (n *Node) Last() *Node {
	if n.Len() == 0 {
		return nil
	}
	return n.At(n.Len() - 1)
}

func (n *Node) slot(i int) *Node {
	if i >= len(n.kids) {
		return nil
	}
	return n.kids[i]
}

func (n *Node) setSlot(i int, c *Node) {
	diag.Assert(i < n.Kind.fixedSlots(), "slot %d on %s", i, n.Kind)
	if old := n.kids[i]; old != nil {
		old.parent = nil
	}
	if c != nil {
		adopt(n, c)
	}
	n.kids[i] = c
}

func adopt(p, c *Node) {
	diag.Assert(c.parent == nil && !c.root, "node %d (%s) already has a parent", c.ID, c.Kind)
	c.parent = p
}

func (n *Node) index() int {
	diag.Assert(n.parent != nil, "node %d (%s) is detached", n.ID, n.Kind)
	i := slices.Index(n.parent.kids, n)
	diag.Assert(i >= 0, "node %d not found in parent", n.ID)
	return i
}

func (n *Node) inList() bool {
	if n.parent == nil {
		return false
	}
	start := n.parent.Kind.listStart()
	return start >= 0 && n.index() >= start
}

// Next returns the following list sibling or nil.
func (n *Node) Next() *Node {
	if !n.inList() {
		return nil
	}
	i := n.index()
	if i+1 < len(n.parent.kids) {
		return n.parent.kids[i+1]
	}
	return nil
}

// Prev returns the preceding list sibling or nil.
func (n *Node) Prev() *Node {
	if !n.inList() {
		return nil
	}
	i := n.index()
	if i > n.parent.Kind.listStart() {
		return n.parent.kids[i-1]
	}
	return nil
}

// InsertAtTail appends c to the list of n.
func (n *Node) InsertAtTail(c *Node) {
	diag.Assert(n.Kind.listStart() >= 0, "InsertAtTail on %s", n.Kind)
	adopt(n, c)
	n.kids = append(n.kids, c)
}

// InsertAtHead prepends c to the list of n.
func (n *Node) InsertAtHead(c *Node) {
	start := n.Kind.listStart()
	diag.Assert(start >= 0, "InsertAtHead on %s", n.Kind)
	adopt(n, c)
	n.kids = slices.Insert(n.kids, start, c)
}

// InsertBefore places c immediately before n in its parent list.
func (n *Node) InsertBefore(c *Node) {
	diag.Assert(n.inList(), "InsertBefore on node %d outside a list", n.ID)
	p := n.parent
	i := n.index()
	adopt(p, c)
	p.kids = slices.Insert(p.kids, i, c)
}

// InsertAfter places c immediately after n in its parent list.
func (n *Node) InsertAfter(c *Node) {
	diag.Assert(n.inList(), "InsertAfter on node %d outside a list", n.ID)
	p := n.parent
	i := n.index()
	adopt(p, c)
	p.kids = slices.Insert(p.kids, i+1, c)
}

// Remove detaches n from its parent and returns it. A fixed slot becomes
// empty; a list closes the gap.
func (n *Node) Remove() *Node {
	p := n.parent
	diag.Assert(p != nil, "Remove of detached node %d (%s)", n.ID, n.Kind)
	i := n.index()
	if start := p.Kind.listStart(); start >= 0 && i >= start {
		p.kids = slices.Delete(p.kids, i, i+1)
	} else {
		p.kids[i] = nil
	}
	n.parent = nil
	return n
}

// Replace puts with into the slot of n and returns the detached n.
func (n *Node) Replace(with *Node) *Node {
	p := n.parent
	diag.Assert(p != nil, "Replace of detached node %d (%s)", n.ID, n.Kind)
	i := n.index()
	adopt(p, with)
	p.kids[i] = with
	n.parent = nil
	return n
}

// FlattenAndRemove moves the list elements of n into its parent list at the
// position of n, then removes n.
func (n *Node) FlattenAndRemove() {
	diag.Assert(n.Kind.listStart() == 0, "FlattenAndRemove on %s", n.Kind)
	diag.Assert(n.inList(), "FlattenAndRemove on node %d outside a list", n.ID)
	for n.Len() > 0 {
		c := n.First().Remove()
		n.InsertBefore(c)
	}
	n.Remove()
}

// Base returns the callee slot of a call.
func (n *Node) Base() *Node {
	diag.Assert(n.Kind == KindCall, "Base on %s", n.Kind)
	return n.kids[0]
}

// SetBase replaces the callee slot of a call.
func (n *Node) SetBase(c *Node) {
	diag.Assert(n.Kind == KindCall, "SetBase on %s", n.Kind)
	n.setSlot(0, c)
}

// NumArgs returns the number of actuals of a call.
func (n *Node) NumArgs() int { return n.Len() }

// Arg returns the 0-based actual i of a call.
func (n *Node) Arg(i int) *Node { return n.At(i) }

// Args returns the actuals of a call.
func (n *Node) Args() []*Node { return n.List() }

// IsPrim reports whether n is a call of primitive p.
func (n *Node) IsPrim(p Prim) bool { return n != nil && n.Kind == KindCall && n.Prim == p }

// CalleeName returns the name a call targets: the resolved function, the
// referenced symbol or the unresolved name.
func (n *Node) CalleeName() string {
	if n.Kind != KindCall {
		return ""
	}
	if n.Fn != nil {
		return n.Fn.Name
	}
	switch b := n.kids[0]; {
	case b == nil:
		return n.Prim.String()
	case b.Kind == KindSymExpr:
		return b.Sym.Name
	case b.Kind == KindUnresolved:
		return b.Name
	}
	return ""
}

// Init returns the init slot of a def.
func (n *Node) Init() *Node {
	diag.Assert(n.Kind == KindDef, "Init on %s", n.Kind)
	return n.kids[0]
}

// SetInit replaces the init slot of a def.
func (n *Node) SetInit(c *Node) { n.setSlot(0, c) }

// TypeExpr returns the type slot of a def.
func (n *Node) TypeExpr() *Node {
	diag.Assert(n.Kind == KindDef, "TypeExpr on %s", n.Kind)
	return n.kids[1]
}

// SetTypeExpr replaces the type slot of a def.
func (n *Node) SetTypeExpr(c *Node) { n.setSlot(1, c) }

// Expr returns the single slot of a named actual or defer.
func (n *Node) Expr() *Node {
	diag.Assert(n.Kind == KindNamed || n.Kind == KindDefer, "Expr on %s", n.Kind)
	return n.kids[0]
}

// CondExpr returns the condition of a cond.
func (n *Node) CondExpr() *Node { return n.slot(0) }

// Then returns the then branch of a cond.
func (n *Node) Then() *Node { return n.slot(1) }

// Else returns the else branch of a cond.
func (n *Node) Else() *Node { return n.slot(2) }
