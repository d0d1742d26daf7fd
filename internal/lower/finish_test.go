package lower

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mpyw/forall/internal/config"
	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
	"github.com/mpyw/forall/internal/registry"
	"github.com/mpyw/forall/internal/resolve"
)

func fnByTag(tree *ir.Tree, name string, tag ir.Tag) *ir.Symbol {
	for _, fn := range tree.Fns(name) {
		if fn.Fn.Tag == tag {
			return fn
		}
	}
	return nil
}

func TestConvertIteratorForLoopexpr(t *testing.T) {
	t.Parallel()

	tree := ir.NewTree(nil)
	lib := library.Declare(tree)
	reporter := diag.NewReporter()
	l := New(tree, lib, registry.New(tree), resolve.New(tree, lib, reporter), reporter, config.Default(), nil)

	lx := tree.Fns("chpl__loopexpr_iter2")[0]
	leader := fnByTag(tree, "blocks", ir.TagLeader)

	outer := tree.NewVar(0, "outer", tree.Int)
	call := tree.CallFn(0, lx,
		tree.Ref(0, tree.Imm(8)),
		tree.Ref(0, outer),
		tree.Named(0, "tag", tree.Ref(0, tree.Leader)))
	call.Fn = lx
	call.Type = lx.Fn.Ret

	idx := tree.NewVar(0, "i", nil)
	fs := tree.Forall(0, []*ir.Node{call}, []*ir.Node{tree.Def(0, idx, nil, nil)}, nil, nil, ir.ForallInfo{})
	tree.Module.InsertAtTail(tree.Def(0, outer, nil, nil))
	tree.Module.InsertAtTail(fs)

	l.finish()

	if call.Fn != leader || call.Base().Sym != leader {
		t.Errorf("iterator call targets %s, want the blocks leader", call.Base())
	}
	var got []string
	for _, a := range call.Args() {
		got = append(got, a.String())
	}
	if diff := cmp.Diff([]string{"8", "tag=leader"}, got); diff != "" {
		t.Errorf("actuals mismatch (-want +got):\n%s", diff)
	}
	if reporter.HasErrors() {
		t.Errorf("unexpected diagnostics: %v", reporter.Messages())
	}
}

func TestConvertIteratorForLoopexprIgnoresIterators(t *testing.T) {
	t.Parallel()

	tree := ir.NewTree(nil)
	lib := library.Declare(tree)
	reporter := diag.NewReporter()
	l := New(tree, lib, registry.New(tree), resolve.New(tree, lib, reporter), reporter, config.Default(), nil)

	sa := fnByTag(tree, "chpl__loopexpr_iter1", ir.TagStandalone)
	call := tree.CallFn(0, sa, tree.Ref(0, tree.Imm(8)), tree.Named(0, "tag", tree.Ref(0, tree.Standalone)))
	call.Fn = sa

	idx := tree.NewVar(0, "i", nil)
	tree.Module.InsertAtTail(tree.Forall(0, []*ir.Node{call}, []*ir.Node{tree.Def(0, idx, nil, nil)}, nil, nil, ir.ForallInfo{}))

	l.convertIteratorForLoopexpr(tree.Module.First())

	if call.Fn != sa || call.NumArgs() != 2 {
		t.Errorf("iterator call rewritten to %s", call)
	}
}
