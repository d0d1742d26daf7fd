package interp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mpyw/forall/internal/config"
	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/interp"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
	"github.com/mpyw/forall/internal/lower"
	"github.com/mpyw/forall/internal/registry"
	"github.com/mpyw/forall/internal/resolve"
	"github.com/mpyw/forall/internal/shadow"
)

type program struct {
	tree *ir.Tree
	lib  *library.Library
	cfg  config.Config
}

func newProgram() *program {
	tree := ir.NewTree(nil)
	return &program{tree: tree, lib: library.Declare(tree), cfg: config.Default()}
}

func (p *program) imm(v int64) *ir.Node { return p.tree.Ref(0, p.tree.Imm(v)) }

func (p *program) add(stmts ...*ir.Node) {
	for _, s := range stmts {
		p.tree.Module.InsertAtTail(s)
	}
}

// call defines a temporary holding name(args...).
func (p *program) call(name string, args ...*ir.Node) *ir.Symbol {
	tmp := p.tree.NewTemp("call_tmp", nil)
	p.add(p.tree.Def(0, tmp, nil, nil), p.tree.Move(0, tmp, p.tree.CallName(0, name, args...)))
	return tmp
}

// variable defines name initialized by init.
func (p *program) variable(name string, init *ir.Node) *ir.Symbol {
	v := p.tree.NewVar(0, name, nil)
	p.add(p.tree.Def(0, v, init, nil))
	return v
}

// forall appends a forall over iterables whose body is built from the
// index variables.
func (p *program) forall(info ir.ForallInfo, shadows []*ir.Symbol, body func(idx []*ir.Symbol) []*ir.Node, iterables ...*ir.Symbol) {
	var iters, indices []*ir.Node
	var idx []*ir.Symbol
	for i, it := range iterables {
		s := p.tree.NewVar(0, string(rune('i'+i)), nil)
		idx = append(idx, s)
		iters = append(iters, p.tree.Ref(0, it))
		indices = append(indices, p.tree.Def(0, s, nil, nil))
	}
	var defs []*ir.Node
	for _, s := range shadows {
		defs = append(defs, s.Def)
	}
	p.add(p.tree.Forall(0, iters, indices, defs, p.tree.Block(0, body(idx)...), info))
}

func (p *program) emit(n *ir.Node) *ir.Node { return p.tree.CallName(0, "emit", n) }

func (p *program) run(t *testing.T) (*interp.Interpreter, error) {
	t.Helper()
	reporter := diag.NewReporter()
	reg := registry.New(p.tree)
	l := lower.New(p.tree, p.lib, reg, resolve.New(p.tree, p.lib, reporter), reporter, p.cfg, nil)
	if err := l.Run(); err != nil {
		t.Fatalf("lowering failed: %v", err)
	}
	if reporter.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", reporter.Messages())
	}
	in := interp.New(p.tree, p.lib, reg, p.cfg, nil)
	return in, in.Run(context.Background())
}

func ints(lo, hi int) []string {
	var out []string
	for i := lo; i <= hi; i++ {
		out = append(out, interp.Format(int64(i)))
	}
	return out
}

var sorted = cmpopts.SortSlices(func(a, b string) bool { return a < b })

func TestStandaloneReduceIntent(t *testing.T) {
	t.Parallel()

	p := newProgram()
	sum := p.variable("sum", p.imm(5))
	it := p.call("blocks", p.imm(10))
	svar := shadow.NewBuilder(p.tree, diag.NewReporter()).
		BuildFromReduceIntent(p.tree.Unresolved(0, "sum"), p.tree.Ref(0, p.lib.ReduceOp("+")))
	p.forall(ir.ForallInfo{}, []*ir.Symbol{svar}, func(idx []*ir.Symbol) []*ir.Node {
		return []*ir.Node{p.tree.Prim(0, ir.PrimReduceAssign, p.tree.Ref(0, svar), p.tree.Ref(0, idx[0]))}
	}, it)

	in, err := p.run(t)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got, ok := in.Global(sum.Name)
	if !ok {
		t.Fatal("sum is not defined")
	}
	if diff := cmp.Diff(int64(60), got); diff != "" {
		t.Errorf("sum mismatch (-want +got):\n%s", diff)
	}
	if got := in.Stats().Tasks; got != int64(p.cfg.Tasks) {
		t.Errorf("Tasks = %d, want %d", got, p.cfg.Tasks)
	}
}

func TestLeaderFollower(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		noFast      bool
		wantFast    bool
		wantGeneral bool
	}{
		{name: "fast followers", wantFast: true},
		{name: "general followers", noFast: true, wantGeneral: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newProgram()
			p.cfg.NoFastFollowers = tt.noFast
			it := p.call("span", p.imm(3), p.imm(10))
			p.forall(ir.ForallInfo{}, nil, func(idx []*ir.Symbol) []*ir.Node {
				return []*ir.Node{p.emit(p.tree.Ref(0, idx[0]))}
			}, it)

			in, err := p.run(t)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if diff := cmp.Diff(ints(3, 10), in.Output(), sorted); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
			st := in.Stats()
			if st.Acquired != st.Released || st.Acquired != int64(p.cfg.Tasks) {
				t.Errorf("handles acquired %d, released %d, want %d each", st.Acquired, st.Released, p.cfg.Tasks)
			}
			if (st.Fast > 0) != tt.wantFast || (st.General > 0) != tt.wantGeneral {
				t.Errorf("Stats() = %+v, want fast %v general %v", st, tt.wantFast, tt.wantGeneral)
			}
		})
	}
}

func TestZipperedLeaderFollower(t *testing.T) {
	t.Parallel()

	p := newProgram()
	a := p.call("blocks", p.imm(4))
	b := p.call("span", p.imm(5), p.imm(8))
	p.forall(ir.ForallInfo{Zippered: true}, nil, func(idx []*ir.Symbol) []*ir.Node {
		return []*ir.Node{p.emit(p.tree.Prim(0, ir.PrimBuildTuple, p.tree.Ref(0, idx[0]), p.tree.Ref(0, idx[1])))}
	}, a, b)

	in, err := p.run(t)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"(1, 5)", "(2, 6)", "(3, 7)", "(4, 8)"}
	if diff := cmp.Diff(want, in.Output(), sorted); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestFollowerOrder(t *testing.T) {
	t.Parallel()

	outputs := make(map[bool][]string)
	for _, noFast := range []bool{false, true} {
		p := newProgram()
		p.cfg.Tasks = 1
		p.cfg.NoFastFollowers = noFast
		it := p.call("span", p.imm(1), p.imm(8))
		p.forall(ir.ForallInfo{}, nil, func(idx []*ir.Symbol) []*ir.Node {
			return []*ir.Node{p.emit(p.tree.Ref(0, idx[0]))}
		}, it)

		in, err := p.run(t)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		st := in.Stats()
		if noFast && (st.General == 0 || st.Fast != 0) {
			t.Errorf("Stats() = %+v, want general followers only", st)
		}
		if !noFast && (st.Fast == 0 || st.General != 0) {
			t.Errorf("Stats() = %+v, want fast followers only", st)
		}
		outputs[noFast] = in.Output()
	}

	if diff := cmp.Diff(ints(1, 8), outputs[false]); diff != "" {
		t.Errorf("fast follower output mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(outputs[false], outputs[true]); diff != "" {
		t.Errorf("general follower output mismatch (-fast +general):\n%s", diff)
	}
}

func TestNestedZipUsesGeneralFollower(t *testing.T) {
	t.Parallel()

	p := newProgram()
	it := p.call("span", p.imm(1), p.imm(3))
	pair := p.variable("pair", p.tree.Prim(0, ir.PrimBuildTuple,
		p.tree.CallName(0, "chpl_build_bounded_range", p.imm(1), p.imm(3)),
		p.tree.CallName(0, "chpl_build_bounded_range", p.imm(4), p.imm(6))))
	p.forall(ir.ForallInfo{Zippered: true}, nil, func(idx []*ir.Symbol) []*ir.Node {
		return []*ir.Node{p.emit(p.tree.Ref(0, idx[0]))}
	}, it, pair)

	in, err := p.run(t)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff(ints(1, 3), in.Output(), sorted); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	st := in.Stats()
	if st.General == 0 || st.Fast != 0 {
		t.Errorf("Stats() = %+v, want general followers despite fast followers being enabled", st)
	}
	if st.Acquired != st.Released {
		t.Errorf("handles acquired %d, released %d", st.Acquired, st.Released)
	}
}

func TestZipperedSerialFallback(t *testing.T) {
	t.Parallel()

	p := newProgram()
	a := p.call("count", p.imm(3))
	b := p.call("count", p.imm(3))
	p.forall(ir.ForallInfo{Zippered: true, AllowSerial: true}, nil, func(idx []*ir.Symbol) []*ir.Node {
		return []*ir.Node{p.emit(p.tree.Prim(0, ir.PrimAdd, p.tree.Ref(0, idx[0]), p.tree.Ref(0, idx[1])))}
	}, a, b)

	in, err := p.run(t)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"2", "4", "6"}, in.Output()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if st := in.Stats(); st.Tasks != 1 || st.Acquired != 1 || st.Released != 1 {
		t.Errorf("Stats() = %+v, want one task over one handle", st)
	}
}

func TestReduceExpressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		op    string
		zip   bool
		want  interp.Value
		tasks int
	}{
		{name: "sum", op: "+", want: int64(55)},
		{name: "product on one task", op: "*", want: int64(3628800), tasks: 1},
		{name: "max", op: "max", want: int64(10)},
		{name: "zippered sum", op: "+", zip: true, want: interp.Tuple{int64(55), int64(155)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newProgram()
			if tt.tasks > 0 {
				p.cfg.Tasks = tt.tasks
			}
			rng := func(name string, lo, hi int64) *ir.Symbol {
				return p.variable(name, p.tree.CallName(0, "chpl_build_bounded_range", p.imm(lo), p.imm(hi)))
			}
			data := rng("r", 1, 10)
			zippered := p.tree.False
			if tt.zip {
				r2 := rng("r2", 11, 20)
				z := p.tree.NewTemp("zip_tmp", nil)
				p.add(p.tree.Def(0, z, nil, nil), p.tree.Move(0, z, p.tree.Prim(0, ir.PrimZip, p.tree.Ref(0, data), p.tree.Ref(0, r2))))
				data = z
				zippered = p.tree.True
			}
			p.variable("x", p.tree.Prim(0, ir.PrimReduce,
				p.tree.Ref(0, p.lib.ReduceOp(tt.op)), p.tree.Ref(0, data), p.tree.Ref(0, zippered)))

			in, err := p.run(t)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			got, _ := in.Global("x")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("x mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecursiveIterator(t *testing.T) {
	t.Parallel()

	p := newProgram()
	it := p.call("walk", p.imm(5))
	p.forall(ir.ForallInfo{}, nil, func(idx []*ir.Symbol) []*ir.Node {
		return []*ir.Node{p.emit(p.tree.Ref(0, idx[0]))}
	}, it)

	in, err := p.run(t)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff(ints(1, 5), in.Output()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if st := in.Stats(); st.Tasks != 0 || st.Acquired != 1 || st.Released != 1 {
		t.Errorf("Stats() = %+v, want a serial loop over one handle", st)
	}
}

func TestReduceOverRecursiveIterator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   string
		want int64
	}{
		{"+", 10},
		{"*", 24},
		{"min", 1},
		{"max", 4},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			t.Parallel()

			p := newProgram()
			it := p.call("walk", p.imm(4))
			p.variable("x", p.tree.Prim(0, ir.PrimReduce,
				p.tree.Ref(0, p.lib.ReduceOp(tt.op)), p.tree.Ref(0, it), p.tree.Ref(0, p.tree.False)))

			in, err := p.run(t)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			got, _ := in.Global("x")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("x mismatch (-want +got):\n%s", diff)
			}
			if st := in.Stats(); st.Tasks != 0 {
				t.Errorf("Tasks = %d, want the serial loop of a committed scaffold", st.Tasks)
			}
		})
	}
}

func TestFailReleasesHandles(t *testing.T) {
	t.Parallel()

	p := newProgram()
	it := p.call("span", p.imm(1), p.imm(8))
	p.forall(ir.ForallInfo{}, nil, func([]*ir.Symbol) []*ir.Node {
		return []*ir.Node{p.tree.CallName(0, "fail")}
	}, it)

	in, err := p.run(t)
	if !errors.Is(err, interp.ErrFail) {
		t.Fatalf("Run() error = %v, want %v", err, interp.ErrFail)
	}
	if st := in.Stats(); st.Acquired == 0 || st.Acquired != st.Released {
		t.Errorf("handles acquired %d, released %d, want every acquired handle released", st.Acquired, st.Released)
	}
}
