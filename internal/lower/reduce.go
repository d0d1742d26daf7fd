package lower

import (
	"go/token"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/registry"
)

// LowerPrimReduce rewrites the reduce expression call, "op reduce data",
// into a forall accumulating into a fresh result variable through a reduce
// shadow variable, and replaces call with a reference to the result. The
// forall is inserted immediately before the statement holding call. The
// returned anchor precedes everything inserted; lowering resumes there.
func (l *Lowerer) LowerPrimReduce(call *ir.Node) (*ir.Node, error) {
	diag.Assert(call.IsPrim(ir.PrimReduce) && call.NumArgs() == 3, "malformed reduce expression %s", call)
	t := l.tree
	pos := call.Pos

	stmt := stmtOf(call)
	anchor := t.Prim(pos, ir.PrimNoop)
	stmt.InsertBefore(anchor)

	opSE := call.Arg(0).Remove()
	dataSE := call.Arg(0).Remove()
	zippered := call.Arg(0).Sym == t.True
	diag.Assert(opSE.Kind == ir.KindSymExpr && dataSE.Kind == ir.KindSymExpr, "reduce operands must be symbol references")

	opExpr, inputType := l.lowerReduceOp(stmt, opSE, dataSE, zippered)

	result := t.NewTemp("chpl_redResult", inputType)
	stmt.InsertBefore(t.Def(pos, result, nil, nil))

	svar := l.shadows.NewReduce("chpl_redSVar", result, opExpr)
	fs := l.forallFromReduce(pos, dataSE, svar, zippered)
	stmt.InsertBefore(fs)
	call.Replace(t.Ref(pos, result))

	l.stats.Reduces++
	l.log.Debugf("reduce expression lowered into forall %d", fs.ID)
	return anchor, nil
}

// lowerReduceOp returns op instantiated over the element type of data,
// "op(inputType)". When the element type does not fold to a type reference
// the query result is bound to a type temporary before stmt.
func (l *Lowerer) lowerReduceOp(stmt, opSE, dataSE *ir.Node, zippered bool) (*ir.Node, *ir.Type) {
	t := l.tree
	pos := opSE.Pos

	var iit *ir.Node
	if zippered {
		zip := l.zipOf(dataSE.Sym)
		iit = l.registry.Call(pos, registry.OpIteratorIndexTypeZip)
		for _, a := range zip.Args() {
			iit.InsertAtTail(t.Ref(pos, a.Sym))
		}
	} else {
		iit = l.registry.Call(pos, registry.OpIteratorIndexType, t.Ref(pos, dataSE.Sym))
	}

	stmt.InsertBefore(iit)
	folded, ok := l.resolver.FoldType(iit)
	iit.Remove()

	var inputType *ir.Type
	if ok {
		inputType = folded.Sym.Type
	} else {
		tmp := t.NewTemp("iitr_temp", nil)
		tmp.Add(ir.FlagTypeVariable)
		stmt.InsertBefore(t.Def(pos, tmp, nil, nil))
		stmt.InsertBefore(t.Move(pos, tmp, iit))
		folded = t.Ref(pos, tmp)
	}
	return t.Call(pos, opSE, folded), inputType
}

// forallFromReduce builds the forall of a reduce expression. A zippered
// reduction iterates the components of the zip with one index each.
func (l *Lowerer) forallFromReduce(pos token.Pos, dataSE *ir.Node, svar *ir.Symbol, zippered bool) *ir.Node {
	t := l.tree

	var iterables, indices []*ir.Node
	var value *ir.Node
	if zippered {
		zip := l.zipOf(dataSE.Sym)
		tuple := t.Prim(pos, ir.PrimBuildTuple)
		for _, a := range zip.Args() {
			idx := t.NewTemp("chpl_redIdx", nil)
			iterables = append(iterables, t.Ref(pos, a.Sym))
			indices = append(indices, t.Def(pos, idx, nil, nil))
			tuple.InsertAtTail(t.Ref(pos, idx))
		}
		value = tuple
		l.dropZipTemp(dataSE.Sym)
	} else {
		idx := t.NewTemp("chpl_redIdx", nil)
		iterables = []*ir.Node{dataSE}
		indices = []*ir.Node{t.Def(pos, idx, nil, nil)}
		value = t.Ref(pos, idx)
	}

	body := t.Block(pos, t.Prim(pos, ir.PrimReduceAssign, t.Ref(pos, svar), value))
	return t.Forall(pos, iterables, indices, []*ir.Node{svar.Def}, body, ir.ForallInfo{
		Zippered:    zippered,
		AllowSerial: true,
		FromReduce:  true,
	})
}

// zipOf returns the zip aggregate a temporary is defined as.
func (l *Lowerer) zipOf(sym *ir.Symbol) *ir.Node {
	def := l.tree.DefMove(sym)
	diag.Assert(def != nil && def.NumArgs() == 2 && def.Arg(1).IsPrim(ir.PrimZip),
		"zippered reduce over %s, which is not a zip", sym)
	return def.Arg(1)
}

// dropZipTemp removes a zip temporary once its components are iterated
// directly.
func (l *Lowerer) dropZipTemp(sym *ir.Symbol) {
	def := l.tree.DefMove(sym)
	if def == nil || len(l.tree.UsesInTree(sym)) != 1 {
		return
	}
	def.Remove()
	if sym.Def != nil && sym.Def.Parent() != nil {
		sym.Def.Remove()
	}
}

// stmtOf returns the statement containing n.
func stmtOf(n *ir.Node) *ir.Node {
	cur := n
	for p := cur.Parent(); p != nil; p = cur.Parent() {
		if p.Kind == ir.KindBlock || p.Kind == ir.KindFor {
			return cur
		}
		cur = p
	}
	diag.Assert(false, "expression %d is not inside a statement", n.ID)
	return nil
}
