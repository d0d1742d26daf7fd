package ir

import "golang.org/x/tools/container/intsets"

// Walk visits n and its descendants in preorder. The children of a node are
// skipped when fn returns false. fn must not restructure the tree.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, k := range n.kids {
		if k != nil {
			Walk(k, fn)
		}
	}
}

// Collect returns the nodes under n, in preorder, for which pred holds.
// The result is a snapshot and may be used to restructure the tree.
func Collect(n *Node, pred func(*Node) bool) []*Node {
	var out []*Node
	Walk(n, func(c *Node) bool {
		if pred(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Uses returns the references to sym under n.
func Uses(n *Node, sym *Symbol) []*Node {
	return Collect(n, func(c *Node) bool {
		return c.Kind == KindSymExpr && c.Sym == sym
	})
}

// UsesInTree returns the references to sym under every root of t.
func (t *Tree) UsesInTree(sym *Symbol) []*Node {
	var out []*Node
	for _, r := range t.roots {
		out = append(out, Uses(r, sym)...)
	}
	return out
}

// DefMove returns the move that assigns sym, or nil. Temporaries have a
// single such move.
func (t *Tree) DefMove(sym *Symbol) *Node {
	for _, use := range t.UsesInTree(sym) {
		p := use.parent
		if p.IsPrim(PrimMove) && p.Arg(0) == use {
			return p
		}
	}
	return nil
}

// DefExpr returns the value sym is defined with: the source of its
// defining move, or else the init of its def.
func (t *Tree) DefExpr(sym *Symbol) *Node {
	if m := t.DefMove(sym); m != nil {
		if m.NumArgs() == 2 {
			return m.Arg(1)
		}
		return nil
	}
	if sym.Def != nil {
		return sym.Def.Init()
	}
	return nil
}

// DefinedSymbols returns the IDs of symbols defined under n.
func DefinedSymbols(n *Node) *intsets.Sparse {
	var set intsets.Sparse
	Walk(n, func(c *Node) bool {
		if c.Kind == KindDef {
			set.Insert(int(c.Sym.ID))
		}
		return true
	})
	return &set
}

// EnclosingFn returns the function whose body contains n, nil at module level.
func EnclosingFn(n *Node) *Symbol {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	if cur.root {
		return cur.Owner
	}
	return nil
}

// LookupVisible finds the nearest definition of name visible at n: earlier
// siblings in enclosing lists, forall induction and shadow variables for
// code in a forall body, and formals of the enclosing function.
func LookupVisible(n *Node, name string) *Symbol {
	cur := n
	for cur.parent != nil {
		p := cur.parent
		switch {
		case p.Kind == KindForall && cur == p.LoopBody():
			if s := findDef(p.ShadowVars().List(), name); s != nil {
				return s
			}
			if s := findDef(p.IndexVars().List(), name); s != nil {
				return s
			}
		case p.Kind.listStart() == 0:
			i := cur.index()
			if s := findDef(p.kids[:i], name); s != nil {
				return s
			}
		}
		cur = p
	}
	if cur.root && cur.Owner != nil {
		for _, f := range cur.Owner.Fn.Formals {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

func findDef(nodes []*Node, name string) *Symbol {
	for i := len(nodes) - 1; i >= 0; i-- {
		if d := nodes[i]; d != nil && d.Kind == KindDef && d.Sym.Name == name {
			return d.Sym
		}
	}
	return nil
}
