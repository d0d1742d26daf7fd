package shadow_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
	"github.com/mpyw/forall/internal/resolve"
	"github.com/mpyw/forall/internal/shadow"
)

func TestBuildForPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		prefix   shadow.Prefix
		withType bool
		withInit bool
		intent   ir.Intent
		qual     ir.Qualifier
		flags    []ir.Flag
		wantMsgs []string
	}{
		{
			name:   "ref intent",
			prefix: shadow.PrefixRef,
			intent: ir.IntentRef,
		},
		{
			name:   "const in intent",
			prefix: shadow.PrefixConstIn,
			intent: ir.IntentConstIn,
		},
		{
			name:     "var without type or init",
			prefix:   shadow.PrefixVar,
			intent:   ir.IntentDefault,
			wantMsgs: []string{"a task private variable 'x' requires a type and/or initializing expression"},
		},
		{
			name:     "var with type",
			prefix:   shadow.PrefixVar,
			withType: true,
			intent:   ir.IntentTaskPrivate,
			qual:     ir.QualValue,
			flags:    []ir.Flag{ir.FlagNoAutoDestroy},
		},
		{
			name:     "const with type",
			prefix:   shadow.PrefixConst,
			withType: true,
			intent:   ir.IntentTaskPrivate,
			qual:     ir.QualConstValue,
			flags:    []ir.Flag{ir.FlagConst, ir.FlagNoAutoDestroy},
		},
		{
			name:     "ref with init",
			prefix:   shadow.PrefixRef,
			withInit: true,
			intent:   ir.IntentTaskPrivate,
			qual:     ir.QualRef,
			flags:    []ir.Flag{ir.FlagRefVar, ir.FlagNoAutoDestroy},
		},
		{
			name:     "ref without init",
			prefix:   shadow.PrefixRef,
			withType: true,
			intent:   ir.IntentTaskPrivate,
			qual:     ir.QualRef,
			wantMsgs: []string{
				"a 'ref' or 'const ref' task-private variable 'x' must have an initializing expression",
				"a 'ref' or 'const ref' task-private variable 'x' cannot have a type",
			},
		},
		{
			name:     "const ref with type and init",
			prefix:   shadow.PrefixConstRef,
			withType: true,
			withInit: true,
			intent:   ir.IntentTaskPrivate,
			qual:     ir.QualConstRef,
			wantMsgs: []string{"a 'ref' or 'const ref' task-private variable 'x' cannot have a type"},
		},
		{
			name:     "in with init",
			prefix:   shadow.PrefixIn,
			withInit: true,
			intent:   ir.IntentTaskPrivate,
			wantMsgs: []string{"an 'in' or 'const in' intent for 'x' does not allow a type or an initializing expression"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree := ir.NewTree(nil)
			reporter := diag.NewReporter()
			b := shadow.NewBuilder(tree, reporter)

			var typeExpr, init *ir.Node
			if tt.withType {
				typeExpr = tree.Ref(0, tree.Int.Sym)
			}
			if tt.withInit {
				init = tree.Ref(0, tree.Imm(1))
			}
			svar := b.BuildForPrefix(tt.prefix, tree.Unresolved(0, "x"), typeExpr, init)
			if svar == nil {
				t.Fatal("BuildForPrefix() returned nil")
			}
			if svar.Shadow.Intent != tt.intent {
				t.Errorf("intent = %s, want %s", svar.Shadow.Intent, tt.intent)
			}
			if len(tt.wantMsgs) == 0 && svar.Qual != tt.qual {
				t.Errorf("qualifier = %s, want %s", svar.Qual, tt.qual)
			}
			for _, f := range tt.flags {
				if !svar.Has(f) {
					t.Errorf("flags %s missing %s", svar.Flags, ir.Flags(f))
				}
			}
			if svar.Def == nil || svar.Def.Sym != svar {
				t.Errorf("shadow variable has no definition")
			}
			if diff := cmp.Diff(tt.wantMsgs, reporter.Messages(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildForPrefixInSuggestsVar(t *testing.T) {
	t.Parallel()

	tree := ir.NewTree(nil)
	reporter := diag.NewReporter()
	shadow.NewBuilder(tree, reporter).BuildForPrefix(shadow.PrefixConstIn, tree.Unresolved(0, "x"), tree.Ref(0, tree.Int.Sym), nil)

	diags := reporter.Diagnostics()
	if len(diags) != 1 || len(diags[0].Related) != 1 {
		t.Fatalf("diagnostics = %+v, want one error with one note", diags)
	}
	if got, want := diags[0].Related[0].Message, "if you mean to declare a task-private variable, use 'var' or 'const'"; got != want {
		t.Errorf("note = %q, want %q", got, want)
	}
}

type fixture struct {
	tree     *ir.Tree
	lib      *library.Library
	reporter *diag.Reporter
	builder  *shadow.Builder
	res      *resolve.Resolver
}

func newFixture() *fixture {
	tree := ir.NewTree(nil)
	lib := library.Declare(tree)
	reporter := diag.NewReporter()
	return &fixture{
		tree:     tree,
		lib:      lib,
		reporter: reporter,
		builder:  shadow.NewBuilder(tree, reporter),
		res:      resolve.New(tree, lib, reporter),
	}
}

// forall builds "forall i in r with (svar) { outer += i }" after a
// definition of outer, and returns the loop.
func (f *fixture) forall(outer, svar *ir.Symbol) *ir.Node {
	tree := f.tree
	r := tree.NewVar(0, "r", f.lib.Range)
	tree.Module.InsertAtTail(tree.Def(0, outer, tree.Ref(0, tree.Imm(0)), nil))
	tree.Module.InsertAtTail(tree.Def(0, r, nil, nil))

	idx := tree.NewVar(0, "i", tree.Int)
	body := tree.Block(0, tree.Prim(0, ir.PrimAddAssign, tree.Ref(0, outer), tree.Ref(0, idx)))
	fs := tree.Forall(0,
		[]*ir.Node{tree.Ref(0, r)},
		[]*ir.Node{tree.Def(0, idx, nil, nil)},
		[]*ir.Node{svar.Def},
		body, ir.ForallInfo{})
	tree.Module.InsertAtTail(fs)
	return fs
}

func TestResolveRefIntent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	total := f.tree.NewVar(0, "total", f.tree.Int)
	svar := f.builder.BuildForPrefix(shadow.PrefixRef, f.tree.Unresolved(0, "total"), nil, nil)
	fs := f.forall(total, svar)

	if err := f.builder.Resolve(fs, f.res); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if f.reporter.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", f.reporter.Messages())
	}
	if svar.Shadow.Outer != total {
		t.Errorf("outer = %v, want total", svar.Shadow.Outer)
	}
	if svar.Qual != ir.QualRef || svar.Type != f.tree.Int {
		t.Errorf("qualified type = %s, want ref int", svar.QualType())
	}
	if got := len(ir.Uses(fs.LoopBody(), total)); got != 0 {
		t.Errorf("body still references outer variable %d times", got)
	}
	if got := len(ir.Uses(fs.LoopBody(), svar)); got != 1 {
		t.Errorf("body references shadow variable %d times, want 1", got)
	}
	if !svar.Shadow.Resolved {
		t.Error("shadow variable not marked resolved")
	}
}

func TestResolveReduceIntent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	s := f.tree.NewVar(0, "s", f.tree.Int)
	plus := f.lib.ReduceOp("+")
	svar := f.builder.BuildFromReduceIntent(f.tree.Unresolved(0, "s"), f.tree.Ref(0, plus))
	fs := f.forall(s, svar)

	if err := f.builder.Resolve(fs, f.res); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if f.reporter.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", f.reporter.Messages())
	}
	if svar.Shadow.Intent != ir.IntentReduce {
		t.Errorf("intent = %s, want reduce", svar.Shadow.Intent)
	}
	op := svar.Shadow.ReduceOp
	if op.Kind != ir.KindCall || op.Base().Sym != plus || op.NumArgs() != 1 || op.Arg(0).Sym != f.tree.Int.Sym {
		t.Errorf("reduce operator = %s, want SumReduceScanOp(int)", op)
	}
}

func TestResolveMissingOuter(t *testing.T) {
	t.Parallel()

	f := newFixture()
	total := f.tree.NewVar(0, "total", f.tree.Int)
	svar := f.builder.BuildForPrefix(shadow.PrefixIn, f.tree.Unresolved(0, "missing"), nil, nil)
	fs := f.forall(total, svar)

	if err := f.builder.Resolve(fs, f.res); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"'missing' undeclared (first use this function)"}
	if diff := cmp.Diff(want, f.reporter.Messages()); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveTaskPrivate(t *testing.T) {
	t.Parallel()

	f := newFixture()
	total := f.tree.NewVar(0, "total", f.tree.Int)
	svar := f.builder.BuildForPrefix(shadow.PrefixVar, f.tree.Unresolved(0, "tp"), nil, f.tree.Ref(0, f.tree.Imm(3)))
	fs := f.forall(total, svar)

	if err := f.builder.Resolve(fs, f.res); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if svar.Type != f.tree.Int {
		t.Errorf("type = %s, want int", svar.Type)
	}
	if svar.Shadow.Outer != nil {
		t.Errorf("task-private variable bound to outer %v", svar.Shadow.Outer)
	}
}
