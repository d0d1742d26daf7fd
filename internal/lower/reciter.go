package lower

import (
	"go/token"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/registry"
)

// setupRecIterFields prepares, detached from the tree, the pieces that
// drive the parallel iterator of fs through an explicit iterator handle.
// Whether they are needed is only known once recursive iterators have been
// identified, so they are built for every forall.
func (l *Lowerer) setupRecIterFields(fs, parIterCall *ir.Node) error {
	t := l.tree
	pos := parIterCall.Pos

	iterRec := t.NewTemp("chpl__iterPAR", nil)
	parIter := t.NewTemp("chpl__parIter", nil)
	iterRec.Add(ir.FlagNoCopy, ir.FlagIterHandle, ir.FlagMaybeRef, ir.FlagExprTemp)
	parIter.Add(ir.FlagExprTemp)
	fs.FirstIndexVar().Add(ir.FlagIndexVar)

	holder := t.Block(pos)
	fs.InsertBefore(holder)

	irDef := t.Def(pos, iterRec, nil, nil)
	icDef := t.Def(pos, parIter, nil, nil)
	getIterator := l.registry.Call(pos, registry.OpGetIterator, t.Ref(pos, iterRec))
	freeIterator := l.registry.Call(pos, registry.OpFreeIterator, t.Ref(pos, parIter))

	initIterRec := t.Move(pos, iterRec, t.Copy(parIterCall, nil))
	initParIter := t.Move(pos, parIter, getIterator)

	holder.InsertAtTail(irDef)
	holder.InsertAtTail(icDef)
	holder.InsertAtTail(initIterRec)
	holder.InsertAtTail(initParIter)
	holder.InsertAtTail(freeIterator)

	err := l.resolver.ResolveBlock(holder)

	irDef.Remove()
	icDef.Remove()
	getIterator.Remove()
	freeIterator.Remove()
	initParIter.Remove()
	initIterRec.Remove()
	diag.Assert(holder.Len() == 0, "scaffold holder keeps %d statements", holder.Len())
	holder.Remove()

	if err != nil {
		return err
	}
	fs.Info.RecIter = ir.RecIterScaffold{
		IRDef:        irDef,
		ICDef:        icDef,
		GetIterator:  getIterator,
		FreeIterator: freeIterator,
	}
	l.log.Debugf("recursive-iterator scaffold prepared for forall %d", fs.ID)
	return nil
}

// CommitRecIter replaces fs with a serial loop that drives its parallel
// iterator through the prepared scaffold. Shadow variables become plain
// declarations around the loop: reference intents read the outer variable
// directly, value intents copy it, reduce accumulators start from it and
// write back after the loop. The accumulator of a reduce expression starts
// from the operator's identity instead.
func (l *Lowerer) CommitRecIter(fs *ir.Node) *ir.Node {
	sc := fs.Info.RecIter
	diag.Assert(sc.Prepared(), "forall %d has no recursive-iterator scaffold", fs.ID)
	t := l.tree
	pos := fs.Pos

	iterRec := sc.IRDef.Sym
	parIter := sc.ICDef.Sym
	parIdx := fs.FirstIndexVar()
	iterCall := fs.FirstIterExpr().Remove()
	body := fs.LoopBody().Remove()

	block := t.Block(pos, sc.IRDef, sc.ICDef,
		t.Move(pos, iterRec, iterCall),
		t.Move(pos, parIter, sc.GetIterator),
		t.Defer(pos, sc.FreeIterator))

	var writeBack []*ir.Node
	for _, svar := range fs.ShadowSymbols() {
		d := svar.Def.Remove()
		sh := svar.Shadow
		switch {
		case sh.Intent == ir.IntentTaskPrivate:
			block.InsertAtTail(d)
		case sh.Outer == nil:
			// Unresolved after an error; nothing to bind.
		case svar.Qual.IsRef():
			for _, use := range ir.Uses(body, svar) {
				use.Sym = sh.Outer
			}
		default:
			if sh.Intent == ir.IntentReduce && fs.Info.FromReduce {
				// The result variable holds no value yet.
				d.SetInit(l.reduceIdentity(pos, svar))
			} else {
				d.SetInit(t.Ref(pos, sh.Outer))
			}
			block.InsertAtTail(d)
			if sh.Intent == ir.IntentReduce {
				writeBack = append(writeBack, t.Move(pos, sh.Outer, t.Ref(pos, svar)))
			}
		}
	}

	block.InsertAtTail(t.For(pos, parIdx, parIter, body, false))
	for _, wb := range writeBack {
		block.InsertAtTail(wb)
	}

	fs.Replace(block)
	fs.Info.RecIter = ir.RecIterScaffold{}
	l.stats.RecCommit++
	return block
}

// reduceIdentity builds the identity of the reduce operator of svar.
func (l *Lowerer) reduceIdentity(pos token.Pos, svar *ir.Symbol) *ir.Node {
	sh := svar.Shadow
	diag.Assert(sh.ReduceOp != nil, "reduce variable %s has no operator", svar)
	id := l.tree.Prim(pos, ir.PrimReduceIdentity, l.tree.Copy(sh.ReduceOp, nil))
	id.Type = svar.Type
	if id.Type == nil || id.Type == l.tree.Unknown {
		id.Type = sh.Outer.Type
	}
	return id
}

// DiscardRecIter drops the prepared scaffold of fs.
func (l *Lowerer) DiscardRecIter(fs *ir.Node) {
	fs.Info.RecIter = ir.RecIterScaffold{}
	l.stats.RecDiscard++
}
