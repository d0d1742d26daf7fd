package fixture_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/fixture"
	"github.com/mpyw/forall/internal/ir"
)

func load(t *testing.T, src string) (*fixture.Program, *diag.Reporter) {
	t.Helper()
	reporter := diag.NewReporter()
	p, err := fixture.Load(nil, "test.yaml", []byte(src), reporter)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return p, reporter
}

func kinds(b *ir.Node) []string {
	var out []string
	for _, s := range b.List() {
		out = append(out, s.Kind.String())
	}
	return out
}

func TestLoadForall(t *testing.T) {
	t.Parallel()

	p, reporter := load(t, `
name: leader sum
program:
  - var total = 0
  - forall:
      index: [i]
      in: span(1, 8)
      with: [+ reduce total]
      body:
        - total reduce= i
  - emit(total)
`)
	if reporter.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", reporter.Messages())
	}
	if p.Name != "leader sum" {
		t.Errorf("Name = %q, want %q", p.Name, "leader sum")
	}

	mod := p.Tree.Module
	want := []string{"def", "def", "call", "forall", "call"}
	if diff := cmp.Diff(want, kinds(mod)); diff != "" {
		t.Fatalf("module statements mismatch (-want +got):\n%s", diff)
	}

	fs := mod.At(3)
	tmp := fs.FirstIterExpr().Sym
	if tmp.Name != "call_tmp" || !tmp.Has(ir.FlagTemp) {
		t.Errorf("iterable = %s, want a temporary", tmp)
	}
	if move := p.Tree.DefMove(tmp); move == nil || move.Arg(1).CalleeName() != "span" {
		t.Errorf("temporary initialized by %v, want a span call", move)
	}

	svars := fs.ShadowSymbols()
	if len(svars) != 1 || svars[0].Shadow.Intent != ir.IntentReduce || svars[0].Shadow.OuterName != "total" {
		t.Fatalf("shadow variables = %v, want one reduce on total", svars)
	}
	acc := fs.LoopBody().First()
	if !acc.IsPrim(ir.PrimReduceAssign) || acc.Arg(0).Sym != svars[0] || acc.Arg(1).Sym != fs.FirstIndexVar() {
		t.Errorf("body = %s, want the shadow variable accumulating the index", acc)
	}
}

func TestLoadZip(t *testing.T) {
	t.Parallel()

	p, _ := load(t, `
program:
  - var r = 1..4
  - forall:
      index: [a, b]
      in: zip(r, blocks(4))
      serial-ok: true
      body:
        - emit(a + b)
`)
	fs := ir.Collect(p.Tree.Module, func(n *ir.Node) bool { return n.Kind == ir.KindForall })[0]
	if !fs.Info.Zippered || !fs.Info.AllowSerial {
		t.Errorf("Info = %+v, want zippered with serial allowed", fs.Info)
	}
	var got []string
	for _, it := range fs.IterExprs().List() {
		got = append(got, it.Sym.Name)
	}
	if diff := cmp.Diff([]string{"r", "call_tmp"}, got); diff != "" {
		t.Errorf("iterables mismatch (-want +got):\n%s", diff)
	}
	emit := fs.LoopBody().First()
	if add := emit.Arg(0); !add.IsPrim(ir.PrimAdd) || add.Arg(0).Sym.Name != "a" || add.Arg(1).Sym.Name != "b" {
		t.Errorf("emit argument = %s, want a + b", add)
	}
}

func TestLoadReduceExpression(t *testing.T) {
	t.Parallel()

	p, _ := load(t, `
program:
  - var r = 1..4
  - var x = + reduce zip(r, 5..8)
  - var y = max reduce r
`)
	reduces := ir.Collect(p.Tree.Module, func(n *ir.Node) bool { return n.IsPrim(ir.PrimReduce) })
	if len(reduces) != 2 {
		t.Fatalf("reduce expressions = %d, want 2", len(reduces))
	}

	zipped := reduces[0]
	if zipped.Arg(2).Sym != p.Tree.True {
		t.Error("zippered reduce not flagged")
	}
	zip := p.Tree.DefMove(zipped.Arg(1).Sym).Arg(1)
	if !zip.IsPrim(ir.PrimZip) || zip.NumArgs() != 2 {
		t.Fatalf("reduce data = %s, want a two-way zip", zip)
	}
	for _, a := range zip.Args() {
		if a.Kind != ir.KindSymExpr {
			t.Errorf("zip component %s is not held by a variable", a)
		}
	}
	if got := p.Lib.ReduceOpName(zipped.Arg(0).Sym); got != "+" {
		t.Errorf("operator = %q, want +", got)
	}

	plain := reduces[1]
	if plain.Arg(1).Sym.Name != "r" || plain.Arg(2).Sym != p.Tree.False {
		t.Errorf("reduce = %s, want max over r", plain)
	}
}

func TestLoadWithClauses(t *testing.T) {
	t.Parallel()

	p, reporter := load(t, `
program:
  - var x = 1
  - forall:
      index: [i]
      in: blocks(4)
      with:
        - ref x
        - const in x
        - "var t: int = 3"
        - var u
      body:
        - t += i
`)
	fs := ir.Collect(p.Tree.Module, func(n *ir.Node) bool { return n.Kind == ir.KindForall })[0]
	var got []ir.Intent
	for _, s := range fs.ShadowSymbols() {
		got = append(got, s.Shadow.Intent)
	}
	want := []ir.Intent{ir.IntentRef, ir.IntentConstIn, ir.IntentTaskPrivate, ir.IntentDefault}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("intents mismatch (-want +got):\n%s", diff)
	}
	wantMsgs := []string{"a task private variable 'u' requires a type and/or initializing expression"}
	if diff := cmp.Diff(wantMsgs, reporter.Messages()); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	if acc := fs.LoopBody().First(); acc.Arg(0).Sym != fs.ShadowSymbols()[2] {
		t.Errorf("t in body refers to %s, want the task-private variable", acc.Arg(0).Sym)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "undefined name",
			src:  "program:\n  - var x = 1\n  - emit(y)\n",
			want: "test.yaml:3:10: undefined: y",
		},
		{
			name: "index count",
			src:  "program:\n  - forall:\n      index: [i]\n      in: zip(blocks(2), blocks(2))\n",
			want: "forall has 1 index variables for 2 iterables",
		},
		{
			name: "unknown type",
			src:  "program:\n  - \"var x: float\"\n",
			want: `unknown type "float"`,
		},
		{
			name: "expression statement",
			src:  "program:\n  - 1 + 2\n",
			want: "expression statement must be a call",
		},
		{
			name: "trailing tokens",
			src:  "program:\n  - emit(1) 2\n",
			want: `unexpected "2"`,
		},
		{
			name: "with-clause without intent",
			src:  "program:\n  - var x = 1\n  - forall:\n      index: [i]\n      in: blocks(2)\n      with: [x]\n",
			want: "with-clause entry needs an intent or a reduce operator",
		},
		{
			name: "unknown field",
			src:  "programme: []\n",
			want: "field programme not found",
		},
		{
			name: "mapping that is not a forall",
			src:  "program:\n  - var x: int\n",
			want: "statement mapping must be a forall",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := fixture.Load(nil, "test.yaml", []byte(tt.src), diag.NewReporter())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}
