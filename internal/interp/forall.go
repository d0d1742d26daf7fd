package interp

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mpyw/forall/internal/ir"
)

// accumulator is one task's copy of a reduce shadow variable.
type accumulator struct {
	svar *ir.Symbol
	cell *cell
}

// execForall runs a lowered forall. Its first iterable is a call to a
// parallel iterator: a leader yields one share per task, a standalone
// iterator's elements are split into shares, and a serial iterator such as
// the trivial leader runs as a single task.
func (in *Interpreter) execForall(ctx context.Context, e *env, fs *ir.Node) error {
	call := fs.FirstIterExpr()
	if call == nil || call.Kind != ir.KindCall || call.Fn == nil {
		return fmt.Errorf("forall at %s was not lowered", in.tree.Fset.Position(fs.Pos))
	}
	v, err := in.eval(ctx, e, call)
	if err != nil {
		return err
	}
	rec, ok := v.(*IterRecord)
	if !ok {
		return fmt.Errorf("forall iterates %s, not an iterator", Format(v))
	}
	elems, err := in.elements(rec)
	if err != nil {
		return err
	}

	var shares [][]Value
	switch rec.Fn.Fn.Tag {
	case ir.TagLeader:
		for _, s := range elems {
			shares = append(shares, []Value{s})
		}
	case ir.TagStandalone:
		for _, s := range in.shares(int64(len(elems))) {
			r := s.(Range)
			shares = append(shares, elems[r.Lo:r.Hi+1])
		}
	default:
		shares = [][]Value{elems}
	}

	accs := make([][]accumulator, len(shares))
	g, gctx := errgroup.WithContext(ctx)
	for i, share := range shares {
		in.tasks.Add(1)
		g.Go(func() error {
			task, reduce, err := in.taskEnv(gctx, e, fs)
			if err != nil {
				return err
			}
			accs[i] = reduce
			for _, elem := range share {
				if err := gctx.Err(); err != nil {
					return err
				}
				iter := newEnv(task)
				iter.define(fs.FirstIndexVar(), elem)
				if err := in.execBlock(gctx, iter, fs.LoopBody()); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	in.log.Debugf("forall %d ran %d tasks", fs.ID, len(shares))
	return in.combineReductions(e, fs, accs)
}

// taskEnv binds the shadow variables of fs for one task.
func (in *Interpreter) taskEnv(ctx context.Context, e *env, fs *ir.Node) (*env, []accumulator, error) {
	task := newEnv(e)
	var reduce []accumulator
	for _, svar := range fs.ShadowSymbols() {
		sh := svar.Shadow
		if sh.Intent == ir.IntentTaskPrivate {
			if err := in.execDef(ctx, task, svar.Def); err != nil {
				return nil, nil, err
			}
			continue
		}
		if sh.Outer == nil {
			return nil, nil, fmt.Errorf("shadow variable %s has no outer variable", svar)
		}
		outer := e.lookup(sh.Outer)
		if outer == nil {
			return nil, nil, fmt.Errorf("%s is not defined", sh.Outer)
		}
		switch {
		case sh.Intent == ir.IntentReduce:
			r, err := in.reducerOf(sh.ReduceOp)
			if err != nil {
				return nil, nil, err
			}
			id, err := r.identity(in.reduceType(svar))
			if err != nil {
				return nil, nil, err
			}
			reduce = append(reduce, accumulator{svar: svar, cell: task.define(svar, id)})
		case svar.Qual.IsRef():
			task.alias(svar, outer)
		default:
			task.define(svar, outer.get())
		}
	}
	return task, reduce, nil
}

// combineReductions folds the task accumulators into the outer variables in
// task order. A reduce expression's result starts from the identity rather
// than from its default value.
func (in *Interpreter) combineReductions(e *env, fs *ir.Node, accs [][]accumulator) error {
	for _, svar := range fs.ShadowSymbols() {
		sh := svar.Shadow
		if sh.Intent != ir.IntentReduce {
			continue
		}
		r, err := in.reducerOf(sh.ReduceOp)
		if err != nil {
			return err
		}
		outer := e.lookup(sh.Outer)
		err = outer.update(func(old Value) (Value, error) {
			acc := old
			if fs.Info != nil && fs.Info.FromReduce {
				if acc, err = r.identity(in.reduceType(svar)); err != nil {
					return nil, err
				}
			}
			for _, task := range accs {
				for _, a := range task {
					if a.svar != svar {
						continue
					}
					if acc, err = r.combine(acc, a.cell.get()); err != nil {
						return nil, err
					}
				}
			}
			return acc, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) reduceType(svar *ir.Symbol) *ir.Type {
	if svar.Type != nil && svar.Type != in.tree.Unknown {
		return svar.Type
	}
	return svar.Shadow.Outer.Type
}
