package lower

import (
	"slices"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/registry"
)

// handleZipperedSerial lowers a zippered forall whose iterables only have
// serial iterators. The body becomes a zippered serial loop over the
// original iterables, and the forall itself iterates the trivial leader so
// that shadow variables are handled as for any other forall.
func (l *Lowerer) handleZipperedSerial(fs *ir.Node, origIterFn *ir.Symbol, origSE *ir.Node) (*ir.Node, error) {
	if tag := origIterFn.Fn.Tag; tag == ir.TagLeader || tag == ir.TagStandalone {
		return nil, l.diag.Fatalf(fs.FirstIterExpr().Pos, "Support for this combination of zippered iterators is not currently implemented").Err()
	}

	l.buildZipperedForLoop(fs, origIterFn, origSE)

	call, err := l.trivialLeaderCall(fs.Pos)
	if err != nil {
		return nil, err
	}
	idx := l.tree.NewTemp("chpl_trivialIdx", l.trivial.yield)
	idx.Add(ir.FlagIndexVar)
	fs.IndexVars().InsertAtTail(l.tree.Def(fs.Pos, idx, nil, nil))
	fs.IterExprs().InsertAtTail(call)
	return call, nil
}

// buildZipperedForLoop wraps the body of fs in a zippered serial loop over
// the iterables of fs and moves the induction variables into that loop.
func (l *Lowerer) buildZipperedForLoop(fs *ir.Node, origIterFn *ir.Symbol, origSE *ir.Node) {
	t := l.tree
	pos := fs.Pos

	// The first iterable was rewritten into an iterator call; iterate the
	// original value instead.
	iter1 := fs.FirstIterExpr()
	diag.Assert(iter1.Fn == origIterFn, "first iterable is not the resolved iterator call")
	iter1.Replace(origSE)
	if origSE.Sym.Type.IsIteratorRecord() {
		// A reused call was taken out of the temporary's definition.
		if def := t.DefMove(origSE.Sym); def != nil && def.NumArgs() == 1 {
			def.InsertAtTail(iter1)
		}
	}

	zip := t.Prim(pos, ir.PrimZip)
	for _, it := range slices.Clone(fs.IterExprs().List()) {
		zip.InsertAtTail(it.Remove())
	}

	origBody := fs.LoopBody()
	newBody := t.Block(origBody.Pos)
	origBody.Replace(newBody)

	zipIter := t.NewTemp("chpl_zipIter", nil)
	zipIter.Add(ir.FlagIterHandle)
	zipIdx := t.NewTemp("chpl_zipIdx", nil)
	zipIdx.Add(ir.FlagIndexVar)

	newBody.InsertAtTail(t.Def(pos, zipIter, nil, nil))
	iterInit := t.Move(pos, zipIter, l.registry.Call(pos, registry.OpGetIteratorZip, zip))
	newBody.InsertAtTail(iterInit)
	newBody.InsertAtTail(t.Defer(pos, l.registry.Call(pos, registry.OpFreeIterator, t.Ref(pos, zipIter))))
	newBody.InsertAtTail(t.Def(pos, zipIdx, nil, nil))
	newBody.InsertAtTail(t.TypeBlock(pos,
		t.Move(pos, zipIdx, l.registry.Call(pos, registry.OpIteratorIndex, t.Ref(pos, zipIter)))))

	forLoop := t.For(pos, zipIdx, zipIter, origBody, true)
	newBody.InsertAtTail(forLoop)
	l.resolver.Normalize(iterInit)

	defs := slices.Clone(fs.IndexVars().List())
	for k := len(defs) - 1; k >= 0; k-- {
		get := t.Prim(pos, ir.PrimTupleGet, t.Ref(pos, zipIdx), t.Ref(pos, t.Imm(int64(k+1))))
		forLoop.InsertAtHead(t.Move(pos, defs[k].Sym, get))
	}
	for k := len(defs) - 1; k >= 0; k-- {
		forLoop.InsertAtHead(defs[k].Remove())
	}

	origBody.FlattenAndRemove()
}
