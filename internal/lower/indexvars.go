package lower

import (
	"slices"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
)

// addParIdxVarsAndRestruct gives fs a single parallel index. A single
// iterator keeps the user's index. Otherwise the user body moves into an
// inner block whose head declares the user indices and binds them from a
// follower index.
func (l *Lowerer) addParIdxVarsAndRestruct(fs *ir.Node, gotSA bool) {
	if gotSA {
		diag.Assert(fs.NumIndexVars() == 1, "single-iterator forall with %d indices", fs.NumIndexVars())
		parIdx := fs.FirstIndexVar()
		parIdx.Add(ir.FlagIndexOfInterest, ir.FlagIndexVar)
		return
	}

	userBody := fs.LoopBody()
	pos := userBody.Pos
	newBody := l.tree.Block(pos)
	userBody.Replace(newBody)
	newBody.InsertAtTail(userBody)

	parIdx := l.tree.NewTemp("chpl_followThis", nil)
	followIdx := l.tree.NewTemp("chpl__followIdx", nil)
	userBody.InsertBefore(l.tree.Def(pos, followIdx, nil, nil))

	indvars := fs.IndexVars()
	defs := slices.Clone(indvars.List())
	if len(defs) == 1 {
		// One follower value suffices.
		fs.SetNotZippered()
		userBody.InsertAtHead(l.tree.Move(pos, defs[0].Sym, l.tree.Ref(pos, followIdx)))
	} else {
		for k := len(defs) - 1; k >= 0; k-- {
			get := l.tree.Prim(pos, ir.PrimTupleGet, l.tree.Ref(pos, followIdx), l.tree.Ref(pos, l.tree.Imm(int64(k+1))))
			userBody.InsertAtHead(l.tree.Move(pos, defs[k].Sym, get))
		}
	}

	// The user indices are scoped to one iteration of the inner block.
	for k := len(defs) - 1; k >= 0; k-- {
		userBody.InsertAtHead(defs[k].Remove())
	}

	indvars.InsertAtHead(l.tree.Def(pos, parIdx, nil, nil))

	parIdx.Add(ir.FlagIndexOfInterest, ir.FlagInsertAutoDestroy)
	followIdx.Add(ir.FlagIndexOfInterest, ir.FlagIndexVar)

	diag.Assert(fs.NumIndexVars() == 1, "restructured forall keeps %d indices", fs.NumIndexVars())
}

// resolveParIdxVar types the parallel index from the yield type of the
// chosen iterator.
func (l *Lowerer) resolveParIdxVar(fs, iterCall *ir.Node) error {
	qt, err := l.iterYieldType(fs, iterCall.Fn)
	if err != nil {
		return err
	}
	idx := fs.FirstIndexVar()
	idx.Type = qt.Type
	idx.Qual = qt.Qual
	return nil
}

// iterYieldType returns what fn yields. A forwarding procedure yields what
// the iterator behind its iterator record yields.
func (l *Lowerer) iterYieldType(fs *ir.Node, fn *ir.Symbol) (ir.QualifiedType, error) {
	if fn.IsIterator() {
		if y := fn.Fn.Yield; y != nil {
			return *y, nil
		}
		l.diag.Errorf(fs.Pos, "the recursion pattern seen in the first iterable in this forall loop is not supported").
			Note(fn.Pos, "the corresponding iterator is here").
			Note(fn.Pos, "try declaring its return type")
		return ir.QualifiedType{Type: l.tree.Unknown}, diag.ErrStop
	}

	ret := fn.Fn.Ret
	diag.Assert(ret.IsIteratorRecord(), "forwarder %s does not return an iterator record", fn)
	diag.Assert(ret.Iterator.IsIterator(), "iterator record of %s has no iterator", fn)
	return l.iterYieldType(fs, ret.Iterator)
}
