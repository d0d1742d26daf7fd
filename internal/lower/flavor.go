package lower

import (
	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/registry"
	"github.com/mpyw/forall/internal/resolve"
)

// checkExplicitTagArgs rejects iterator calls written with a tag actual.
func (l *Lowerer) checkExplicitTagArgs(iterCall *ir.Node) error {
	for i, actual := range iterCall.Args() {
		isTag := actual.Kind == ir.KindNamed && actual.Name == "tag" ||
			l.resolver.TypeOf(actual) == l.tree.IterKind
		if isTag {
			l.diag.Errorf(iterCall.Pos, "user invocation of a parallel iterator should not supply tag arguments -- they are added implicitly by the compiler").
				Note(iterCall.Pos, "actual argument %d of the iterator call", i+1)
			return diag.ErrStop
		}
	}
	return nil
}

// findParIter tags iterCall with the first flavor that resolves: standalone
// (never for zippered loops), then leader, then serial when fs allows it.
func (l *Lowerer) findParIter(fs, iterCall, origSE *ir.Node, origTarget *ir.Symbol) (Flavor, error) {
	if err := l.checkExplicitTagArgs(iterCall); err != nil {
		return FlavorNone, err
	}

	flavor := FlavorNone
	tag := l.tree.Named(iterCall.Pos, "tag", l.tree.Ref(iterCall.Pos, l.tree.Standalone))
	iterCall.InsertAtTail(tag)

	if !fs.IsZippered() && l.resolver.TryResolve(iterCall) {
		flavor = FlavorStandalone
	}

	if flavor == FlavorNone {
		tag.Expr().Replace(l.tree.Ref(iterCall.Pos, l.tree.Leader))
		if l.resolver.TryResolve(iterCall) {
			flavor = FlavorLeader
		}
	}

	if flavor == FlavorNone && fs.Info.AllowSerial {
		tag.Remove()
		if origTarget != nil {
			flavor = FlavorSerial
			iterCall.Base().Replace(l.tree.Ref(iterCall.Pos, origTarget))
		} else {
			diag.Assert(!origSE.Sym.Type.IsIteratorRecord(), "iterator record %s without an original target", origSE.Sym)
			if l.resolver.TryResolve(iterCall) {
				flavor = FlavorSerial
			}
		}
	}

	if flavor == FlavorNone {
		if iterCall.CalleeName() == l.registry.Name(registry.OpElementsOf) &&
			iterCall.NumArgs() > 1 && resolve.IsTypeExpr(iterCall.Arg(1)) {
			return FlavorNone, l.diag.Fatalf(iterCall.Pos, "unable to iterate over type '%s'", iterCall.Arg(1).Sym.Type).Err()
		}
		standalone := " standalone or"
		if fs.IsZippered() {
			standalone = ""
		}
		return FlavorNone, l.diag.Fatalf(iterCall.Pos,
			"A%s leader iterator is not found for the iterable expression in this forall loop", standalone).Err()
	}
	return flavor, nil
}

// checkNonIterator reports a standalone or leader overload that is a plain
// procedure.
func (l *Lowerer) checkNonIterator(group *ir.IteratorGroup, flavor Flavor, parCall *ir.Node) error {
	if flavor == FlavorStandalone && group.NoniterSA || flavor == FlavorLeader && group.NoniterL {
		dest := parCall.Fn
		l.diag.Errorf(parCall.Pos, "The iterable-expression resolves to a non-iterator function '%s' when looking for a parallel iterator", dest.Name).
			Note(dest.Pos, "The function '%s' is declared here", dest.Name)
		return diag.ErrStop
	}
	return nil
}
