package ir

// SymbolMap substitutes symbols while copying.
type SymbolMap map[*Symbol]*Symbol

// Copy returns a detached deep copy of n. Symbols defined inside n are
// cloned and recorded in m; afterwards every reference in the copy is
// rewritten through m. m may be nil.
func (t *Tree) Copy(n *Node, m SymbolMap) *Node {
	if m == nil {
		m = SymbolMap{}
	}
	defined := DefinedSymbols(n)
	c := t.copyNode(n, m, defined.Has)
	t.remap(c, m)
	return c
}

func (t *Tree) copyNode(n *Node, m SymbolMap, isDefined func(int) bool) *Node {
	c := t.newNode(n.Kind, n.Pos)
	c.Prim = n.Prim
	c.Fn = n.Fn
	c.Type = n.Type
	c.Sym = n.Sym
	c.Name = n.Name
	c.Scopeless = n.Scopeless
	c.TypeOnly = n.TypeOnly
	c.Index = n.Index
	c.Iter = n.Iter
	c.Zippered = n.Zippered
	if n.Info != nil {
		info := *n.Info
		info.RecIter = RecIterScaffold{}
		c.Info = &info
	}
	if n.Kind == KindDef && isDefined(int(n.Sym.ID)) {
		clone := t.cloneSymbol(n.Sym, m)
		clone.Def = c
		m[n.Sym] = clone
		c.Sym = clone
	}
	fixed := n.Kind.fixedSlots()
	for i, k := range n.kids {
		switch {
		case k == nil:
			continue
		case i < fixed:
			c.setSlot(i, t.copyNode(k, m, isDefined))
		default:
			c.InsertAtTail(t.copyNode(k, m, isDefined))
		}
	}
	return c
}

func (t *Tree) cloneSymbol(s *Symbol, m SymbolMap) *Symbol {
	clone := t.newSymbol(s.Kind, s.Pos, s.Name, s.Type)
	clone.Qual = s.Qual
	clone.Flags = s.Flags
	clone.Value = s.Value
	clone.Fn = s.Fn
	if s.Shadow != nil {
		sh := *s.Shadow
		if sh.ReduceOp != nil {
			sh.ReduceOp = t.Copy(sh.ReduceOp, m)
		}
		clone.Shadow = &sh
	}
	return clone
}

func (t *Tree) remap(n *Node, m SymbolMap) {
	Walk(n, func(c *Node) bool {
		if c.Kind == KindSymExpr {
			if s, ok := m[c.Sym]; ok {
				c.Sym = s
			}
		}
		if c.Kind == KindFor {
			if s, ok := m[c.Index]; ok {
				c.Index = s
			}
			if s, ok := m[c.Iter]; ok {
				c.Iter = s
			}
		}
		return true
	})
}
