package lower

import (
	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/registry"
)

// buildFollowLoop returns a block that acquires a follower handle over
// iterRec for the task share leadIdx, releases it on every exit from the
// block and runs body once per element with followIdx bound to it.
func (l *Lowerer) buildFollowLoop(iterRec, leadIdx, followIter, followIdx *ir.Symbol, body *ir.Node, fast, zippered bool) *ir.Node {
	t := l.tree
	pos := body.Pos

	followBlock := t.Block(pos)
	followBlock.InsertAtTail(t.Def(pos, followIter, nil, nil))
	followIter.Add(ir.FlagIterHandle)
	followIdx.Add(ir.FlagFollowerIndex)

	toFollower, getIterator := registry.FollowerOps(fast, zippered)
	followBlock.InsertAtTail(t.Move(pos, followIter,
		l.registry.Call(pos, getIterator,
			l.registry.Call(pos, toFollower, t.Ref(pos, iterRec), t.Ref(pos, leadIdx)))))
	followBlock.InsertAtTail(t.Defer(pos, l.registry.Call(pos, registry.OpFreeIterator, t.Ref(pos, followIter))))

	l.resolver.Normalize(followBlock)

	// The general follower index keeps the definition made during
	// restructuring; the fast one is fresh.
	if def := followIdx.Def; def != nil {
		diag.Assert(def.Parent() == nil, "follower index %s is still defined elsewhere", followIdx)
		followBlock.InsertAtTail(def)
	} else {
		followBlock.InsertAtTail(t.Def(pos, followIdx, nil, nil))
	}

	followBlock.InsertAtTail(t.TypeBlock(pos,
		t.Move(pos, followIdx, l.registry.Call(pos, registry.OpIteratorIndex, t.Ref(pos, followIter)))))

	followBlock.InsertAtTail(t.For(pos, followIdx, followIter, body, zippered))
	return followBlock
}

// buildLeaderLoopBody turns the restructured body of fs into the leader
// loop body: per task, follow the iterable value iterExpr over the task's
// share, through the fast follower when the runtime checks allow it.
func (l *Lowerer) buildLeaderLoopBody(fs, iterExpr *ir.Node) error {
	t := l.tree
	leadIdx := fs.FirstIndexVar()

	zippered := false
	if iterExpr.Kind == ir.KindCall {
		diag.Assert(iterExpr.IsPrim(ir.PrimBuildTuple), "follower iterable is %s", iterExpr)
		zippered = iterExpr.NumArgs() > 1
	}

	leadForLoop := fs.LoopBody()
	followIdx := leadForLoop.First().Remove().Sym
	userBody := leadForLoop.Last().Remove()
	diag.Assert(leadForLoop.Len() == 0, "leader loop body keeps %d statements", leadForLoop.Len())

	pos := fs.Pos
	preFS := t.ScopelessBlock(pos)

	iterRec := t.NewTemp("chpl__iterLF", nil)
	iterRec.Add(ir.FlagNoCopy, ir.FlagExprTemp, ir.FlagIterHandle)
	followIter := t.NewTemp("chpl__followIter", nil)

	preFS.InsertAtTail(t.Def(pos, iterRec, nil, nil))
	toNormalize := t.Move(pos, iterRec, iterExpr)
	preFS.InsertAtTail(toNormalize)

	followBlock := l.buildFollowLoop(iterRec, leadIdx, followIter, followIdx, userBody, false, zippered)

	if !l.cfg.NoFastFollowers {
		staticOK := t.NewTemp("tmp", nil)
		fastOK := t.NewTemp("tmp", nil)
		staticOK.Add(ir.FlagExprTemp, ir.FlagMaybeParam)
		fastOK.Add(ir.FlagExprTemp, ir.FlagMaybeParam)

		leadForLoop.InsertAtTail(t.Def(pos, staticOK, nil, nil))
		leadForLoop.InsertAtTail(t.Def(pos, fastOK, nil, nil))

		static, dynamic := registry.FastFollowCheckOps(zippered)
		leadForLoop.InsertAtTail(t.Move(pos, staticOK, l.registry.Call(pos, static, t.Ref(pos, iterRec))))
		leadForLoop.InsertAtTail(t.Cond(pos, t.Ref(pos, staticOK),
			t.Block(pos, t.Move(pos, fastOK, l.registry.Call(pos, dynamic, t.Ref(pos, iterRec)))),
			t.Block(pos, t.Move(pos, fastOK, t.Ref(pos, t.False)))))

		fastFollowIdx := t.NewTemp("chpl__fastFollowIdx", nil)
		fastFollowIter := t.NewTemp("chpl__fastFollowIter", nil)
		fastFollowIdx.Add(ir.FlagIndexOfInterest, ir.FlagIndexVar)

		userBodyForFast := t.Copy(userBody, ir.SymbolMap{followIdx: fastFollowIdx})
		fastFollowBlock := l.buildFollowLoop(iterRec, leadIdx, fastFollowIter, fastFollowIdx, userBodyForFast, true, zippered)

		leadForLoop.InsertAtTail(t.Cond(pos, t.Ref(pos, fastOK), fastFollowBlock, followBlock))
		l.stats.FastFollows++
	} else {
		leadForLoop.InsertAtTail(followBlock)
	}

	fs.InsertBefore(preFS)
	l.resolver.Normalize(toNormalize)
	if err := l.resolver.ResolveBlock(preFS); err != nil {
		return err
	}
	preFS.FlattenAndRemove()
	return nil
}
