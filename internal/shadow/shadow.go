// Package shadow builds and resolves the shadow variables of forall
// statements: the per-task stand-ins for outer variables named in a
// with-clause, reduce accumulators and task-private variables.
package shadow

import (
	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
)

// Prefix is the keyword written before a with-clause entry.
type Prefix uint8

const (
	PrefixConst Prefix = iota
	PrefixIn
	PrefixConstIn
	PrefixRef
	PrefixConstRef
	PrefixVar
)

func (p Prefix) String() string {
	switch p {
	case PrefixConst:
		return "const"
	case PrefixIn:
		return "in"
	case PrefixConstIn:
		return "const in"
	case PrefixRef:
		return "ref"
	case PrefixConstRef:
		return "const ref"
	}
	return "var"
}

// Builder creates shadow variables and reports construction errors.
type Builder struct {
	tree *ir.Tree
	diag *diag.Reporter
}

// NewBuilder creates a Builder.
func NewBuilder(tree *ir.Tree, reporter *diag.Reporter) *Builder {
	return &Builder{tree: tree, diag: reporter}
}

// BuildForPrefix builds the shadow variable for a with-clause entry. name
// must be an unresolved name. Without a type and init the entry is a plain
// intent on the outer variable of that name; otherwise it declares a
// task-private variable. Invalid combinations are reported and a placeholder
// symbol is still returned.
func (b *Builder) BuildForPrefix(prefix Prefix, name, typeExpr, init *ir.Node) *ir.Symbol {
	diag.Assert(name.Kind == ir.KindUnresolved, "shadow variable name must be unresolved, got %s", name.Kind)
	if typeExpr == nil && init == nil {
		return b.buildIntent(prefix, name)
	}
	return b.buildTaskPrivate(prefix, name, typeExpr, init)
}

func (b *Builder) buildIntent(prefix Prefix, name *ir.Node) *ir.Symbol {
	intent := ir.IntentDefault
	switch prefix {
	case PrefixConst:
		intent = ir.IntentConst
	case PrefixIn:
		intent = ir.IntentIn
	case PrefixConstIn:
		intent = ir.IntentConstIn
	case PrefixRef:
		intent = ir.IntentRef
	case PrefixConstRef:
		intent = ir.IntentConstRef
	case PrefixVar:
		b.diag.Errorf(name.Pos, "a task private variable '%s' requires a type and/or initializing expression", name.Name)
	}
	svar := b.tree.NewShadow(name.Pos, name.Name, ir.ShadowInfo{Intent: intent, OuterName: name.Name})
	b.tree.Def(name.Pos, svar, nil, nil)
	return svar
}

func (b *Builder) buildTaskPrivate(prefix Prefix, name, typeExpr, init *ir.Node) *ir.Symbol {
	svar := b.tree.NewShadow(name.Pos, name.Name, ir.ShadowInfo{Intent: ir.IntentTaskPrivate})

	switch prefix {
	case PrefixVar:
		svar.Qual = ir.QualValue
	case PrefixConst:
		svar.Qual = ir.QualConstValue
		svar.Add(ir.FlagConst)
	case PrefixRef:
		svar.Qual = ir.QualRef
		svar.Add(ir.FlagRefVar)
	case PrefixConstRef:
		svar.Qual = ir.QualConstRef
		svar.Add(ir.FlagConst, ir.FlagRefVar)
	}

	switch prefix {
	case PrefixRef, PrefixConstRef:
		if init == nil {
			b.diag.Errorf(name.Pos, "a 'ref' or 'const ref' task-private variable '%s' must have an initializing expression", name.Name)
		}
		if typeExpr != nil {
			b.diag.Errorf(name.Pos, "a 'ref' or 'const ref' task-private variable '%s' cannot have a type", name.Name)
		}
	case PrefixIn, PrefixConstIn:
		b.diag.Errorf(name.Pos, "an 'in' or 'const in' intent for '%s' does not allow a type or an initializing expression", name.Name).
			Note(name.Pos, "if you mean to declare a task-private variable, use 'var' or 'const'")
	}

	// Teardown of task-private variables is emitted explicitly per task.
	svar.Add(ir.FlagNoAutoDestroy)
	b.tree.Def(name.Pos, svar, init, typeExpr)
	return svar
}

// BuildFromReduceIntent builds a reduce shadow variable for "op reduce outer".
// The operator expression is owned by the shadow variable.
func (b *Builder) BuildFromReduceIntent(outer, op *ir.Node) *ir.Symbol {
	diag.Assert(op != nil, "reduce intent without an operator")
	diag.Assert(outer.Kind == ir.KindUnresolved, "reduce intent outer must be unresolved, got %s", outer.Kind)
	diag.Assert(op.Parent() == nil, "reduce operator already attached")
	svar := b.tree.NewShadow(outer.Pos, outer.Name, ir.ShadowInfo{
		Intent:    ir.IntentReduce,
		OuterName: outer.Name,
		ReduceOp:  op,
	})
	b.tree.Def(outer.Pos, svar, nil, nil)
	return svar
}

// NewReduce builds a reduce shadow variable whose outer variable is already
// known, as reduce-expression lowering requires.
func (b *Builder) NewReduce(name string, outer *ir.Symbol, op *ir.Node) *ir.Symbol {
	diag.Assert(op.Parent() == nil, "reduce operator already attached")
	svar := b.tree.NewShadow(outer.Pos, name, ir.ShadowInfo{
		Intent:    ir.IntentReduce,
		OuterName: outer.Name,
		Outer:     outer,
		ReduceOp:  op,
	})
	b.tree.Def(outer.Pos, svar, nil, nil)
	return svar
}
