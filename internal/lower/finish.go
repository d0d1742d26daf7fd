package lower

import (
	"slices"
	"strings"

	"github.com/mpyw/forall/internal/ir"
)

// finish runs the checks and rewrites that need every forall lowered, then
// commits or discards each recursive-iterator scaffold.
func (l *Lowerer) finish() {
	var foralls []*ir.Node
	for _, root := range l.tree.Roots() {
		foralls = append(foralls, ir.Collect(root, func(n *ir.Node) bool {
			return n.Kind == ir.KindForall
		})...)
	}

	for _, fs := range foralls {
		if fs.Info.FromReduce {
			continue
		}
		if fn := ir.EnclosingFn(fs); fn != nil && fn.IsIterator() && !fn.Fn.Inline {
			l.diag.Errorf(fs.Pos, "invalid use of parallel construct in serial iterator")
		}
		l.convertIteratorForLoopexpr(fs)
	}

	for _, fs := range foralls {
		if !fs.Info.RecIter.Prepared() {
			continue
		}
		if first := fs.FirstIterExpr(); first.Kind == ir.KindCall && first.Fn != nil && first.Fn.Fn.Recursive {
			l.CommitRecIter(fs)
			l.log.Debugf("forall %d over recursive iterator %s runs serially", fs.ID, first.Fn)
			continue
		}
		l.DiscardRecIter(fs)
	}
}

// convertIteratorForLoopexpr retargets a forall iterating a loop-expression
// procedure that merely returns another iterator's record to that iterator.
// The loop-expression procedure takes the outer variables of its body as
// extra actuals, which the target does not accept.
func (l *Lowerer) convertIteratorForLoopexpr(fs *ir.Node) {
	call := fs.FirstIterExpr()
	if call.Kind != ir.KindCall || call.Fn == nil {
		return
	}
	fn := call.Fn
	if !strings.HasPrefix(fn.Name, loopExprPrefix) || fn.IsIterator() {
		return
	}
	ret := fn.Fn.Ret
	if !ret.IsIteratorRecord() || ret.Iterator == fn {
		return
	}

	target := ret.Iterator
	call.Base().Replace(l.tree.Ref(call.Pos, target))
	call.Fn = target

	keep := len(target.Fn.Formals)
	positional := 0
	for _, a := range slices.Clone(call.Args()) {
		if a.Kind == ir.KindNamed {
			continue
		}
		positional++
		if positional > keep {
			a.Remove()
		}
	}
	l.log.Debugf("forall %d: loop expression %s retargeted to %s", fs.ID, fn, target)
}
