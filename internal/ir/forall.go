package ir

import "github.com/mpyw/forall/internal/diag"

// ForallInfo carries the flags and detached scaffolding of a forall statement.
type ForallInfo struct {
	Zippered bool
	// FromForLoop is set when a serial for loop was converted to a forall.
	FromForLoop bool
	// AllowSerial lets the loop fall back to a serial iterator.
	AllowSerial bool
	// RequireSerial forces the serial iterator.
	RequireSerial bool
	// FromReduce marks loops created by reduce-expression lowering.
	FromReduce bool

	RecIter RecIterScaffold
}

// RecIterScaffold holds the detached pieces that let a later stage re-drive
// the parallel iterator of a forall through an explicit iterator handle.
// The pieces are owned by the forall but are not part of the tree.
type RecIterScaffold struct {
	IRDef        *Node
	ICDef        *Node
	GetIterator  *Node
	FreeIterator *Node
}

// Prepared reports whether the scaffold has been built.
func (s RecIterScaffold) Prepared() bool { return s.IRDef != nil }

func (n *Node) forallSlot(i int) *Node {
	diag.Assert(n.Kind == KindForall, "forall accessor on %s", n.Kind)
	return n.kids[i]
}

// IterExprs returns the iterable list of a forall.
func (n *Node) IterExprs() *Node { return n.forallSlot(0) }

// IndexVars returns the induction-variable Def list of a forall.
func (n *Node) IndexVars() *Node { return n.forallSlot(1) }

// ShadowVars returns the shadow-variable Def list of a forall.
func (n *Node) ShadowVars() *Node { return n.forallSlot(2) }

// LoopBody returns the body block of a forall.
func (n *Node) LoopBody() *Node { return n.forallSlot(3) }

// FirstIterExpr returns the first iterable of a forall.
func (n *Node) FirstIterExpr() *Node { return n.IterExprs().First() }

// NumIterExprs returns the number of iterables of a forall.
func (n *Node) NumIterExprs() int { return n.IterExprs().Len() }

// NumIndexVars returns the number of induction variables of a forall.
func (n *Node) NumIndexVars() int { return n.IndexVars().Len() }

// FirstIndexVar returns the first induction variable of a forall.
func (n *Node) FirstIndexVar() *Symbol {
	d := n.IndexVars().First()
	if d == nil {
		return nil
	}
	return d.Sym
}

// ShadowSymbols returns the shadow variables of a forall in order.
func (n *Node) ShadowSymbols() []*Symbol {
	var out []*Symbol
	for _, d := range n.ShadowVars().List() {
		out = append(out, d.Sym)
	}
	return out
}

// IsZippered reports whether a forall iterates in lock-step.
func (n *Node) IsZippered() bool { return n.Info.Zippered }

// SetNotZippered clears the zippered flag of a forall.
func (n *Node) SetNotZippered() { n.Info.Zippered = false }

// EnclosingForall returns the nearest forall whose body contains n.
func EnclosingForall(n *Node) *Node {
	for cur := n.parent; cur != nil; cur = cur.parent {
		if cur.Kind == KindForall {
			return cur
		}
	}
	return nil
}
