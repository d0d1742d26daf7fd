package shadow

import (
	"github.com/mpyw/forall/internal/ir"
)

// Typer resolves and types expressions appearing in with-clauses.
type Typer interface {
	Resolve(call *ir.Node) error
	TypeOf(n *ir.Node) *ir.Type
}

// Resolve binds every shadow variable of fs to its outer variable, computes
// its qualified type, instantiates reduce operators over the outer type and
// redirects references to outer variables in the loop body to the shadow
// variables. Errors are reported and resolution continues; the returned
// error is non-nil only for failures that stop the unit.
func (b *Builder) Resolve(fs *ir.Node, typer Typer) error {
	for _, svar := range fs.ShadowSymbols() {
		if svar.Shadow.Resolved {
			continue
		}
		var err error
		if svar.Shadow.Intent == ir.IntentTaskPrivate {
			err = b.resolveTaskPrivate(svar, typer)
		} else {
			err = b.resolveIntent(fs, svar)
		}
		if err != nil {
			return err
		}
		svar.Shadow.Resolved = true
	}
	return nil
}

func (b *Builder) resolveIntent(fs *ir.Node, svar *ir.Symbol) error {
	sh := svar.Shadow
	if sh.Outer == nil {
		sh.Outer = ir.LookupVisible(fs, sh.OuterName)
		if sh.Outer == nil {
			b.diag.Errorf(svar.Pos, "'%s' undeclared (first use this function)", sh.OuterName)
			return nil
		}
	}
	outer := sh.Outer
	svar.Type = outer.Type
	svar.Qual = intentQual(sh.Intent, outer.Type)
	if svar.Qual == ir.QualConstValue || svar.Qual == ir.QualConstRef {
		svar.Add(ir.FlagConst)
	}

	if sh.Intent == ir.IntentReduce {
		b.instantiateReduceOp(svar)
	}

	for _, use := range ir.Uses(fs.LoopBody(), outer) {
		use.Sym = svar
	}
	return nil
}

func intentQual(intent ir.Intent, typ *ir.Type) ir.Qualifier {
	refDefault := typ != nil && typ.RefIntent
	switch intent {
	case ir.IntentDefault:
		if refDefault {
			return ir.QualRef
		}
		return ir.QualConstValue
	case ir.IntentConst:
		if refDefault {
			return ir.QualConstRef
		}
		return ir.QualConstValue
	case ir.IntentIn:
		return ir.QualValue
	case ir.IntentConstIn:
		return ir.QualConstValue
	case ir.IntentRef:
		return ir.QualRef
	case ir.IntentConstRef:
		return ir.QualConstRef
	}
	return ir.QualValue
}

// instantiateReduceOp turns a bare operator class into an instance over the
// outer variable's type.
func (b *Builder) instantiateReduceOp(svar *ir.Symbol) {
	sh := svar.Shadow
	op := sh.ReduceOp
	switch {
	case op.Kind == ir.KindSymExpr && isReduceOp(op.Sym):
		if svar.Type == nil {
			b.diag.Errorf(svar.Pos, "cannot determine the type of '%s' for its reduce intent", sh.OuterName)
			return
		}
		sh.ReduceOp = b.tree.Call(op.Pos, op, b.tree.Ref(op.Pos, svar.Type.Sym))
	case op.Kind == ir.KindCall && op.Base() != nil && op.Base().Kind == ir.KindSymExpr && isReduceOp(op.Base().Sym):
		// Already an instance.
	default:
		b.diag.Errorf(op.Pos, "'%s' is not a reduce operator", op.String())
	}
}

func isReduceOp(s *ir.Symbol) bool {
	return s.Kind == ir.SymType && s.Type != nil && s.Type.Kind == ir.TypeReduceOp
}

func (b *Builder) resolveTaskPrivate(svar *ir.Symbol, typer Typer) error {
	def := svar.Def
	if te := def.TypeExpr(); te != nil {
		if te.Kind == ir.KindSymExpr && te.Sym.Kind == ir.SymType {
			svar.Type = te.Sym.Type
		} else {
			b.diag.Errorf(te.Pos, "the type of task-private variable '%s' is not a type", svar.Name)
		}
	}
	if init := def.Init(); init != nil {
		if init.Kind == ir.KindCall {
			if err := typer.Resolve(init); err != nil {
				return err
			}
		}
		if svar.Type == nil {
			svar.Type = typer.TypeOf(init)
		}
	}
	return nil
}
