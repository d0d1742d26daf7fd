package resolve

import (
	"github.com/mpyw/forall/internal/ir"
)

// ResolveBlock resolves every call under b and propagates types into the
// symbols they initialize. Nested forall statements are left to the pass.
func (r *Resolver) ResolveBlock(b *ir.Node) error {
	for _, s := range b.List() {
		if err := r.ResolveStmt(s); err != nil {
			return err
		}
	}
	return nil
}

// ResolveStmt resolves a single statement. Resolving a statement twice is
// harmless.
func (r *Resolver) ResolveStmt(s *ir.Node) error {
	switch s.Kind {
	case ir.KindBlock:
		return r.ResolveBlock(s)
	case ir.KindForall:
		return nil
	case ir.KindDef:
		if init := s.Init(); init != nil {
			if err := r.resolveExpr(init); err != nil {
				return err
			}
			if s.Sym.Type == nil {
				s.Sym.Type = r.TypeOf(init)
			}
		}
		if te := s.TypeExpr(); te != nil && s.Sym.Type == nil && IsTypeExpr(te) {
			s.Sym.Type = te.Sym.Type
		}
		return nil
	case ir.KindFor:
		if s.Index != nil && s.Index.Type == nil && s.Iter != nil {
			s.Index.Type = r.lib.IndexType(s.Iter.Type)
		}
		return r.ResolveBlock(s)
	case ir.KindCond:
		if err := r.resolveExpr(s.CondExpr()); err != nil {
			return err
		}
		if err := r.ResolveBlock(s.Then()); err != nil {
			return err
		}
		if els := s.Else(); els != nil {
			return r.ResolveBlock(els)
		}
		return nil
	case ir.KindDefer:
		if body := s.Expr(); body.Kind == ir.KindBlock {
			return r.ResolveBlock(body)
		}
		return r.resolveExpr(s.Expr())
	case ir.KindCall:
		if err := r.resolveExpr(s); err != nil {
			return err
		}
		if s.Prim == ir.PrimMove {
			lhs := s.Arg(0).Sym
			if lhs.Type == nil {
				lhs.Type = r.TypeOf(s.Arg(1))
			}
		}
		return nil
	}
	return nil
}

// Normalize hoists nested calls of statements under n into temporaries
// defined immediately before the statement.
func (r *Resolver) Normalize(n *ir.Node) {
	stmts := ir.Collect(n, func(c *ir.Node) bool {
		if c.Kind != ir.KindCall {
			return false
		}
		p := c.Parent()
		return p != nil && (p.Kind == ir.KindBlock || p.Kind == ir.KindFor)
	})
	for _, s := range stmts {
		target := s
		if s.IsPrim(ir.PrimMove) {
			target = s.Arg(1)
		}
		if target.Kind == ir.KindCall && target.Prim == ir.PrimNone {
			r.hoistActuals(target, s)
		}
	}
}

func (r *Resolver) hoistActuals(call, stmt *ir.Node) {
	for _, a := range call.Args() {
		if a.Kind != ir.KindCall || a.Prim != ir.PrimNone {
			continue
		}
		r.hoistActuals(a, stmt)
		tmp := r.tree.NewTemp("call_tmp", nil)
		tmp.Add(ir.FlagExprTemp, ir.FlagMaybeParam)
		a.Replace(r.tree.Ref(a.Pos, tmp))
		stmt.InsertBefore(r.tree.Def(a.Pos, tmp, nil, nil))
		stmt.InsertBefore(r.tree.Move(a.Pos, tmp, a))
	}
}

// FoldType resolves an iterator-index-type query. When the resulting type
// is known it returns a detached reference to the type and true; otherwise
// the call itself and false.
func (r *Resolver) FoldType(call *ir.Node) (*ir.Node, bool) {
	if !r.TryResolve(call) {
		return call, false
	}
	if call.Type == nil || call.Type == r.tree.Unknown {
		return call, false
	}
	return r.tree.Ref(call.Pos, call.Type.Sym), true
}

// IteratorGroup returns the iterator group of a serial iterator, building
// and caching it on first use.
func (r *Resolver) IteratorGroup(fn *ir.Symbol) *ir.IteratorGroup {
	if g := fn.Fn.Group; g != nil {
		return g
	}
	g := &ir.IteratorGroup{Serial: fn}
	for _, c := range r.tree.Fns(fn.Name) {
		if c == fn || !sameFormals(c, fn) {
			continue
		}
		switch c.Fn.Tag {
		case ir.TagStandalone:
			if g.Standalone == nil {
				g.Standalone = c
				g.NoniterSA = !c.IsIterator()
			}
		case ir.TagLeader:
			if g.Leader == nil {
				g.Leader = c
				g.NoniterL = !c.IsIterator()
			}
		}
	}
	fn.Fn.Group = g
	return g
}

func sameFormals(a, b *ir.Symbol) bool {
	if len(a.Fn.Formals) != len(b.Fn.Formals) || a.Fn.Method != b.Fn.Method {
		return false
	}
	for i := range a.Fn.Formals {
		if a.Fn.Formals[i].Type != b.Fn.Formals[i].Type {
			return false
		}
	}
	return true
}
