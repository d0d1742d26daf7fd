package lower

import (
	"strings"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/registry"
)

// Name prefixes of the functions generated for forall expressions.
const (
	forallExprPrefix = "chpl__forallexpr"
	loopExprPrefix   = "chpl__loopexpr_iter"
)

// buildParIterCall replaces the first iterable of fs, origSE, with the call
// that flavor resolution will tag. For an iterator record that is the
// defining iterator call, reused when it belongs to a temporary and cloned
// otherwise; for any other value a call to the elements-of entry point. origTarget is the original iterator when the
// call was cloned.
func (l *Lowerer) buildParIterCall(fs, origSE *ir.Node) (iterCall *ir.Node, origTarget *ir.Symbol, err error) {
	sym := origSE.Sym

	if sym.Type.IsIteratorRecord() {
		if sym.Kind == ir.SymArg {
			l.diag.Errorf(origSE.Pos, "a forall loop over a formal argument corresponding to a for/forall/promoted expression or an iterator call is not implemented").
				Note(sym.Type.Iterator.Pos, "the actual argument is here")
			return nil, nil, diag.ErrStop
		}

		origIterCall := l.tree.DefExpr(sym)
		diag.Assert(origIterCall != nil && origIterCall.Kind == ir.KindCall,
			"iterator record %s has no defining call", sym)
		target := origIterCall.Fn
		diag.Assert(target != nil, "defining call of %s is unresolved", sym)

		targetName := target.Name
		if suffix, ok := strings.CutPrefix(targetName, forallExprPrefix); ok {
			targetName = loopExprPrefix + suffix
			target = target.Fn.Ret.Iterator
			diag.Assert(target.Name == targetName, "forall expression %s forwards to %s", origIterCall.Fn, target)
		}

		switch {
		case acceptUnmodified(fs) && sym.Has(ir.FlagTemp):
			iterCall = origIterCall.Remove()
		case acceptUnmodified(fs):
			// A variable keeps its initializer for its other uses.
			iterCall = l.tree.Copy(origIterCall, nil)
		default:
			iterCall = l.tree.Copy(origIterCall, nil)
			iterCall.Fn = nil
			iterCall.Type = nil
			iterCall.Base().Replace(l.tree.Unresolved(origIterCall.Pos, targetName))
			origTarget = target
		}
	} else {
		iterCall = l.registry.Call(origSE.Pos, registry.OpElementsOf,
			l.tree.Ref(origSE.Pos, l.tree.MethodToken), l.tree.Ref(origSE.Pos, sym))
	}

	origSE.Replace(iterCall)
	return iterCall, origTarget, nil
}

// rebuildIterableCall returns the value the follower loops iterate: origSE
// alone, or a tuple of origSE and the remaining iterables, which it takes
// out of fs.
func (l *Lowerer) rebuildIterableCall(fs, iterCall, origSE *ir.Node) *ir.Node {
	diag.Assert(iterCall == fs.FirstIterExpr(), "iterator call is not the first iterable")

	n := fs.NumIterExprs()
	if n == 1 {
		diag.Assert(!fs.IsZippered(), "zippered forall with one iterable")
		return origSE
	}

	tuple := l.tree.Prim(origSE.Pos, ir.PrimBuildTuple, origSE)
	for next := iterCall.Next(); next != nil; next = iterCall.Next() {
		tuple.InsertAtTail(next.Remove())
	}
	diag.Assert(tuple.NumArgs() == n, "tuple of %d iterables, want %d", tuple.NumArgs(), n)
	return tuple
}

// removeOrigIterCall drops the iterator-record temporary origSE referred to,
// along with its definition, unless an iterator-index-type query still
// reads it.
func (l *Lowerer) removeOrigIterCall(origSE *ir.Node) {
	diag.Assert(!origSE.InTree(), "original iterable still in the tree")
	sym := origSE.Sym
	diag.Assert(sym.Has(ir.FlagTemp), "iterable %s is not a temporary", sym)

	def := l.tree.DefMove(sym)
	diag.Assert(def != nil, "temporary %s has no defining move", sym)

	for _, use := range l.tree.UsesInTree(sym) {
		if use == def.Arg(0) {
			continue
		}
		diag.Assert(l.isIndexTypeQuery(use.Parent()), "unexpected use of %s in %s", sym, use.Parent())
		return
	}

	def.Remove()
	if sym.Def != nil && sym.Def.Parent() != nil {
		sym.Def.Remove()
	}
}

func (l *Lowerer) isIndexTypeQuery(call *ir.Node) bool {
	if call == nil || call.Kind != ir.KindCall {
		return false
	}
	name := call.CalleeName()
	return name == l.registry.Name(registry.OpIteratorIndexType) ||
		name == l.registry.Name(registry.OpIteratorIndexTypeZip)
}
