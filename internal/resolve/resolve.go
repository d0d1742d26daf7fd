// Package resolve binds calls to declared functions.
//
// It implements the services forall lowering consumes from the surrounding
// compiler: try-resolve without side effects, resolve-or-diagnose, block
// resolution with type propagation, normalization of nested calls into
// temporaries, folding of iterator-index-type queries, and lazily built
// iterator groups.
//
// Overload selection is deliberately simple. Candidates are the functions
// declared under the callee name, tried in declaration order. A candidate
// matches when its tag equals the tag actual (or both are absent) and every
// positional actual matches the formal type, where an untyped formal
// accepts anything.
package resolve

import (
	"strings"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
)

// Resolver resolves calls against the functions declared in a tree.
type Resolver struct {
	tree *ir.Tree
	lib  *library.Library
	diag *diag.Reporter
}

// New creates a resolver.
func New(tree *ir.Tree, lib *library.Library, reporter *diag.Reporter) *Resolver {
	return &Resolver{tree: tree, lib: lib, diag: reporter}
}

// TryResolve binds call if a candidate matches. On failure it reports
// nothing and leaves call unchanged.
func (r *Resolver) TryResolve(call *ir.Node) bool {
	if call.Fn != nil {
		return true
	}
	for _, a := range call.Args() {
		r.typeActuals(a)
	}
	base := call.Base()
	if base != nil && base.Kind == ir.KindSymExpr && base.Sym.Kind == ir.SymFn {
		if !r.matches(call, base.Sym) {
			return false
		}
		r.bind(call, base.Sym)
		return true
	}
	if base == nil || base.Kind != ir.KindUnresolved {
		return false
	}
	for _, fn := range r.tree.Fns(base.Name) {
		if r.matches(call, fn) {
			r.bind(call, fn)
			return true
		}
	}
	return false
}

// Resolve binds call or reports a fatal error naming the call.
func (r *Resolver) Resolve(call *ir.Node) error {
	if call.Prim != ir.PrimNone {
		for _, a := range call.Args() {
			if err := r.resolveExpr(a); err != nil {
				return err
			}
		}
		call.Type = r.TypeOf(call)
		return nil
	}
	if r.TryResolve(call) {
		return nil
	}
	return r.diag.Fatalf(call.Pos, "unresolved call '%s'", r.signature(call)).Err()
}

// typeActuals resolves nested calls of an actual so that its type is known.
// Failures are left for Resolve to report on the outer call.
func (r *Resolver) typeActuals(n *ir.Node) {
	switch n.Kind {
	case ir.KindNamed:
		r.typeActuals(n.Expr())
	case ir.KindCall:
		for _, a := range n.Args() {
			r.typeActuals(a)
		}
		if n.Prim == ir.PrimNone {
			r.TryResolve(n)
		} else {
			n.Type = r.TypeOf(n)
		}
	}
}

func (r *Resolver) resolveExpr(n *ir.Node) error {
	switch n.Kind {
	case ir.KindNamed:
		return r.resolveExpr(n.Expr())
	case ir.KindCall:
		for _, a := range n.Args() {
			if err := r.resolveExpr(a); err != nil {
				return err
			}
		}
		return r.Resolve(n)
	}
	return nil
}

func (r *Resolver) matches(call *ir.Node, fn *ir.Symbol) bool {
	if fn.Kind != ir.SymFn || fn.Fn == nil {
		return false
	}
	tag := ir.TagNone
	var positional []*ir.Node
	for _, a := range call.Args() {
		if a.Kind != ir.KindNamed {
			positional = append(positional, a)
			continue
		}
		if a.Name != "tag" {
			return false
		}
		v := a.Expr()
		if v.Kind != ir.KindSymExpr {
			return false
		}
		t, ok := v.Sym.Value.(ir.Tag)
		if !ok {
			return false
		}
		tag = t
	}
	if fn.Fn.Tag != tag {
		return false
	}
	formals := fn.Fn.Formals
	switch {
	case fn.Fn.Variadic:
		if len(positional) < len(formals) {
			return false
		}
	case len(positional) != len(formals):
		return false
	}
	for i, a := range positional {
		f := formals[min(i, len(formals)-1)]
		if f.Type != nil && r.TypeOf(a) != f.Type {
			return false
		}
	}
	return true
}

func (r *Resolver) bind(call *ir.Node, fn *ir.Symbol) {
	call.Fn = fn
	if base := call.Base(); base == nil || base.Kind != ir.KindSymExpr || base.Sym != fn {
		ref := r.tree.Ref(call.Pos, fn)
		if base == nil {
			call.SetBase(ref)
		} else {
			base.Replace(ref)
		}
	}
	switch {
	case fn.Fn.Infer != nil:
		var types []*ir.Type
		for _, a := range call.Args() {
			if a.Kind != ir.KindNamed {
				types = append(types, r.TypeOf(a))
			}
		}
		call.Type = fn.Fn.Infer(types)
	default:
		call.Type = fn.Fn.Ret
	}
}

// TypeOf returns the type of an expression, nil when unknown.
func (r *Resolver) TypeOf(n *ir.Node) *ir.Type {
	switch n.Kind {
	case ir.KindSymExpr:
		return n.Sym.Type
	case ir.KindNamed:
		return r.TypeOf(n.Expr())
	case ir.KindCall:
		switch n.Prim {
		case ir.PrimNone:
			return n.Type
		case ir.PrimZip, ir.PrimBuildTuple:
			elems := make([]*ir.Type, n.NumArgs())
			for i, a := range n.Args() {
				elems[i] = r.TypeOf(a)
				if elems[i] == nil {
					return nil
				}
			}
			return r.tree.TupleType(elems...)
		case ir.PrimTupleGet:
			tup := r.TypeOf(n.Arg(0))
			sel := n.Arg(1)
			if sel.Kind != ir.KindSymExpr {
				return nil
			}
			idx, ok := sel.Sym.Value.(int64)
			if tup == nil || tup.Kind != ir.TypeTuple || !ok || idx < 1 || int(idx) > len(tup.Elems) {
				return nil
			}
			return tup.Elems[idx-1]
		case ir.PrimAdd:
			return r.tree.Int
		case ir.PrimReduceIdentity:
			return n.Type
		}
	}
	return nil
}

// IsTypeExpr reports whether n denotes a type rather than a value.
func IsTypeExpr(n *ir.Node) bool {
	return n.Kind == ir.KindSymExpr && n.Sym.Kind == ir.SymType
}

func (r *Resolver) signature(call *ir.Node) string {
	var sb strings.Builder
	sb.WriteString(call.CalleeName())
	sb.WriteString("(")
	for i, a := range call.Args() {
		if i > 0 {
			sb.WriteString(", ")
		}
		if a.Kind == ir.KindNamed {
			sb.WriteString(a.Name)
			sb.WriteString("=")
			sb.WriteString(a.Expr().String())
			continue
		}
		sb.WriteString(r.TypeOf(a).String())
	}
	sb.WriteString(")")
	return sb.String()
}
