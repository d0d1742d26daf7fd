package lower

import (
	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
)

// Flavor is the kind of parallel iterator chosen for a forall.
type Flavor uint8

const (
	FlavorNone Flavor = iota
	FlavorSerial
	FlavorStandalone
	FlavorLeader
)

func (f Flavor) String() string {
	switch f {
	case FlavorSerial:
		return "serial"
	case FlavorStandalone:
		return "standalone"
	case FlavorLeader:
		return "leader"
	}
	return "none"
}

// ResolveForallHeader picks and resolves the parallel iterator of fs and
// lowers the loop around it. It returns the call the forall now iterates:
// the parallel iterator call, or the trivial leader call for the
// zippered-serial fallback.
//
// diag.ErrStop means fs was abandoned after reporting errors and may be
// left partly rewritten; a *diag.FatalError halts the unit.
func (l *Lowerer) ResolveForallHeader(fs *ir.Node) (*ir.Node, error) {
	origSE := fs.FirstIterExpr()
	diag.Assert(origSE != nil && origSE.Kind == ir.KindSymExpr,
		"forall %d: first iterable must be a symbol reference", fs.ID)

	iterCall, origTarget, err := l.buildParIterCall(fs, origSE)
	if err != nil {
		return nil, err
	}
	diag.Assert(iterCall == fs.FirstIterExpr(), "iterator call is not the first iterable")
	diag.Assert(!origSE.InTree(), "original iterable still in the tree")

	flavor := FlavorSerial
	if !acceptUnmodified(fs) {
		flavor, err = l.findParIter(fs, iterCall, origSE, origTarget)
		if err != nil {
			return nil, err
		}
	}
	if err := l.resolver.Resolve(iterCall); err != nil {
		return nil, err
	}

	origIterFn := iterCall.Fn
	gotSA := flavor != FlavorLeader

	if origTarget != nil {
		group := l.resolver.IteratorGroup(origTarget)
		if err := l.checkNonIterator(group, flavor, iterCall); err != nil {
			return nil, err
		}
		switch {
		case origTarget == origIterFn:
			diag.Assert(flavor == FlavorSerial, "original target resolved as %s", flavor)
			diag.Assert(fs.Info.AllowSerial, "serial iterator chosen without permission")
			diag.Assert(origIterFn == group.Serial, "serial target is not the group's serial iterator")
		case gotSA:
			diag.Assert(origIterFn == group.Standalone, "%s is not the group's standalone iterator", origIterFn)
		default:
			diag.Assert(origIterFn == group.Leader, "%s is not the group's leader iterator", origIterFn)
		}
	}

	log := l.log.With(map[string]any{"forall": fs.ID, "flavor": flavor})

	var result *ir.Node
	if flavor == FlavorSerial && fs.NumIterExprs() > 1 {
		diag.Assert(fs.NumIterExprs() == fs.NumIndexVars(), "zippered forall with %d iterables and %d indices",
			fs.NumIterExprs(), fs.NumIndexVars())

		result, err = l.handleZipperedSerial(fs, origIterFn, origSE)
		if err != nil {
			return nil, err
		}
		if err := l.shadows.Resolve(fs, l.resolver); err != nil {
			return nil, err
		}
		l.stats.ZipSerial++
		log.Debugf("zippered serial iterables run under the trivial leader")
	} else {
		l.addParIdxVarsAndRestruct(fs, gotSA)

		if err := l.resolveParIdxVar(fs, iterCall); err != nil {
			return nil, err
		}
		if err := l.shadows.Resolve(fs, l.resolver); err != nil {
			return nil, err
		}

		if gotSA {
			if origSE.Sym.Type.IsIteratorRecord() && origSE.Sym.Has(ir.FlagTemp) {
				l.removeOrigIterCall(origSE)
			}
		} else if err := l.buildLeaderLoopBody(fs, l.rebuildIterableCall(fs, iterCall, origSE)); err != nil {
			return nil, err
		}

		diag.Assert(iterCall == fs.FirstIterExpr(), "iterator call moved")
		diag.Assert(fs.NumIterExprs() == 1, "forall %d keeps %d iterables", fs.ID, fs.NumIterExprs())
		result = iterCall
		l.countFlavor(flavor)
		log.Debugf("parallel iterator %s resolved", iterCall.Fn)
	}

	if err := l.setupRecIterFields(fs, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (l *Lowerer) countFlavor(f Flavor) {
	switch f {
	case FlavorStandalone:
		l.stats.Standalone++
	case FlavorLeader:
		l.stats.Leader++
	case FlavorSerial:
		l.stats.Serial++
	}
}

// acceptUnmodified reports whether the iterable call may be used as is.
func acceptUnmodified(fs *ir.Node) bool {
	return fs.Info.FromForLoop || fs.Info.RequireSerial
}
