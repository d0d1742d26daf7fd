// Package interp executes lowered trees.
//
// It is a verification harness for the pass: forall loops run their
// parallel iterator's task shares on goroutines, follower handles are
// acquired and released through the deferred actions the pass inserted,
// and shadow variables follow their intents. Iterators are materialized
// eagerly, so a handle holds every element it yields.
package interp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mpyw/forall/internal/config"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
	"github.com/mpyw/forall/internal/logging"
	"github.com/mpyw/forall/internal/registry"
)

// ErrFail is returned when the program calls fail.
var ErrFail = errors.New("fail called")

// Stats counts runtime events.
type Stats struct {
	Tasks    int64
	Acquired int64
	Released int64
	// Fast and General count follower records by branch.
	Fast    int64
	General int64
}

// Interpreter executes one tree.
type Interpreter struct {
	tree *ir.Tree
	lib  *library.Library
	cfg  config.Config
	log  logging.Logger

	entries map[string]registry.Op
	globals *env

	mu  sync.Mutex
	out []string

	tasks, acquired, released, fast, general atomic.Int64
}

// New creates an interpreter. reg must be the registry the tree was
// lowered with.
func New(tree *ir.Tree, lib *library.Library, reg *registry.Registry, cfg config.Config, log logging.Logger) *Interpreter {
	if log == nil {
		log = logging.Nop()
	}
	cfg.Normalize()
	entries := make(map[string]registry.Op, len(registry.DefaultEntries))
	for _, e := range registry.DefaultEntries {
		entries[reg.Name(e.Op)] = e.Op
	}
	return &Interpreter{
		tree:    tree,
		lib:     lib,
		cfg:     cfg,
		log:     log,
		entries: entries,
		globals: newEnv(nil),
	}
}

// Run executes the module block.
func (in *Interpreter) Run(ctx context.Context) error {
	return in.execBlock(ctx, in.globals, in.tree.Module)
}

// Output returns the emitted values in emission order.
func (in *Interpreter) Output() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.out...)
}

// Global returns the value of a module-level variable.
func (in *Interpreter) Global(name string) (Value, bool) {
	for s, c := range in.globals.vars {
		if s.Name == name {
			return c.get(), true
		}
	}
	return nil, false
}

// Stats returns the runtime counters.
func (in *Interpreter) Stats() Stats {
	return Stats{
		Tasks:    in.tasks.Load(),
		Acquired: in.acquired.Load(),
		Released: in.released.Load(),
		Fast:     in.fast.Load(),
		General:  in.general.Load(),
	}
}

func (in *Interpreter) emit(v Value) {
	in.mu.Lock()
	in.out = append(in.out, Format(v))
	in.mu.Unlock()
}

type cell struct {
	mu sync.Mutex
	v  Value
}

func (c *cell) get() Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *cell) set(v Value) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// update replaces the value under the cell lock.
func (c *cell) update(f func(Value) (Value, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := f(c.v)
	if err != nil {
		return err
	}
	c.v = v
	return nil
}

// env is a scope. Only the goroutine owning an env defines into it.
type env struct {
	parent *env
	vars   map[*ir.Symbol]*cell
}

func newEnv(parent *env) *env {
	return &env{parent: parent, vars: make(map[*ir.Symbol]*cell)}
}

func (e *env) lookup(s *ir.Symbol) *cell {
	for cur := e; cur != nil; cur = cur.parent {
		if c, ok := cur.vars[s]; ok {
			return c
		}
	}
	return nil
}

func (e *env) define(s *ir.Symbol, v Value) *cell {
	c := &cell{v: v}
	e.vars[s] = c
	return c
}

func (e *env) alias(s *ir.Symbol, c *cell) {
	e.vars[s] = c
}

// execBlock runs b in a new scope, unless b is scopeless.
func (in *Interpreter) execBlock(ctx context.Context, e *env, b *ir.Node) error {
	if b.TypeOnly {
		return nil
	}
	if !b.Scopeless && !b.IsRoot() {
		e = newEnv(e)
	}
	return in.execList(ctx, e, b.List())
}

func (in *Interpreter) exec(ctx context.Context, e *env, s *ir.Node) error {
	switch s.Kind {
	case ir.KindBlock:
		return in.execBlock(ctx, e, s)
	case ir.KindDef:
		return in.execDef(ctx, e, s)
	case ir.KindCall:
		_, err := in.eval(ctx, e, s)
		return err
	case ir.KindCond:
		v, err := in.eval(ctx, e, s.CondExpr())
		if err != nil {
			return err
		}
		ok, err := asBool(v)
		if err != nil {
			return err
		}
		if ok {
			return in.execBlock(ctx, e, s.Then())
		}
		if els := s.Else(); els != nil {
			return in.execBlock(ctx, e, els)
		}
		return nil
	case ir.KindFor:
		return in.execFor(ctx, e, s)
	case ir.KindForall:
		return in.execForall(ctx, e, s)
	}
	return fmt.Errorf("cannot execute %s statement", s.Kind)
}

func (in *Interpreter) execDef(ctx context.Context, e *env, d *ir.Node) error {
	sym := d.Sym
	if sym.Has(ir.FlagTypeVariable) {
		e.define(sym, TypeValue{Type: sym.Type})
		return nil
	}
	if init := d.Init(); init != nil {
		v, err := in.eval(ctx, e, init)
		if err != nil {
			return err
		}
		e.define(sym, v)
		return nil
	}
	e.define(sym, in.zeroValue(sym.Type))
	return nil
}

// execFor runs the body of a serial loop once per element of its handle.
func (in *Interpreter) execFor(ctx context.Context, e *env, f *ir.Node) error {
	c := e.lookup(f.Iter)
	if c == nil {
		return fmt.Errorf("iterator %s is not defined", f.Iter)
	}
	h, ok := c.get().(*Handle)
	if !ok {
		return fmt.Errorf("%s does not hold an iterator", f.Iter)
	}
	for _, elem := range h.elems {
		iter := newEnv(e)
		iter.define(f.Index, elem)
		if err := in.execList(ctx, iter, f.List()); err != nil {
			return err
		}
	}
	return nil
}

// execList runs stmts in e, then the actions deferred among them in
// reverse order, whether or not a statement failed.
func (in *Interpreter) execList(ctx context.Context, e *env, stmts []*ir.Node) (err error) {
	var defers []*ir.Node
	defer func() {
		for i := len(defers) - 1; i >= 0; i-- {
			if _, derr := in.eval(ctx, e, defers[i].Expr()); derr != nil {
				err = errors.Join(err, derr)
			}
		}
	}()
	for _, s := range stmts {
		if s.Kind == ir.KindDefer {
			defers = append(defers, s)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := in.exec(ctx, e, s); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) eval(ctx context.Context, e *env, n *ir.Node) (Value, error) {
	switch n.Kind {
	case ir.KindSymExpr:
		return in.load(e, n.Sym)
	case ir.KindNamed:
		return in.eval(ctx, e, n.Expr())
	case ir.KindBlock:
		return nil, in.execBlock(ctx, e, n)
	case ir.KindCall:
		if n.Prim != ir.PrimNone {
			return in.evalPrim(ctx, e, n)
		}
		return in.evalCall(ctx, e, n)
	}
	return nil, fmt.Errorf("cannot evaluate %s", n.Kind)
}

func (in *Interpreter) load(e *env, s *ir.Symbol) (Value, error) {
	switch s.Kind {
	case ir.SymConst:
		return s.Value, nil
	case ir.SymType:
		return TypeValue{Type: s.Type}, nil
	case ir.SymFn:
		return nil, fmt.Errorf("function %s used as a value", s)
	}
	c := e.lookup(s)
	if c == nil {
		return nil, fmt.Errorf("%s is not defined", s)
	}
	return c.get(), nil
}

// store assigns to s, defining it in e when no scope holds it yet.
func (in *Interpreter) store(e *env, s *ir.Symbol, v Value) {
	if c := e.lookup(s); c != nil {
		c.set(v)
		return
	}
	e.define(s, v)
}

func (in *Interpreter) evalArgs(ctx context.Context, e *env, n *ir.Node) ([]Value, error) {
	var out []Value
	for _, a := range n.Args() {
		if a.Kind == ir.KindNamed {
			continue
		}
		v, err := in.eval(ctx, e, a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interpreter) evalPrim(ctx context.Context, e *env, n *ir.Node) (Value, error) {
	switch n.Prim {
	case ir.PrimNoop:
		return nil, nil
	case ir.PrimMove:
		v, err := in.eval(ctx, e, n.Arg(1))
		if err != nil {
			return nil, err
		}
		in.store(e, n.Arg(0).Sym, v)
		return nil, nil
	case ir.PrimAddAssign:
		rhs, err := in.eval(ctx, e, n.Arg(1))
		if err != nil {
			return nil, err
		}
		c := e.lookup(n.Arg(0).Sym)
		if c == nil {
			return nil, fmt.Errorf("%s is not defined", n.Arg(0).Sym)
		}
		return nil, c.update(func(old Value) (Value, error) {
			return reducer{op: "+"}.combine(old, rhs)
		})
	case ir.PrimReduceAssign:
		svar := n.Arg(0).Sym
		rhs, err := in.eval(ctx, e, n.Arg(1))
		if err != nil {
			return nil, err
		}
		if svar.Shadow == nil {
			return nil, fmt.Errorf("%s is not a reduce variable", svar)
		}
		r, err := in.reducerOf(svar.Shadow.ReduceOp)
		if err != nil {
			return nil, err
		}
		c := e.lookup(svar)
		if c == nil {
			return nil, fmt.Errorf("%s is not defined", svar)
		}
		return nil, c.update(func(old Value) (Value, error) { return r.combine(old, rhs) })
	case ir.PrimAdd:
		args, err := in.evalArgs(ctx, e, n)
		if err != nil {
			return nil, err
		}
		return reducer{op: "+"}.combine(args[0], args[1])
	case ir.PrimZip, ir.PrimBuildTuple:
		args, err := in.evalArgs(ctx, e, n)
		if err != nil {
			return nil, err
		}
		return Tuple(args), nil
	case ir.PrimTupleGet:
		args, err := in.evalArgs(ctx, e, n)
		if err != nil {
			return nil, err
		}
		t, ok := args[0].(Tuple)
		idx, err := asInt(args[1])
		if err != nil {
			return nil, err
		}
		if !ok || idx < 1 || int(idx) > len(t) {
			return nil, fmt.Errorf("tuple_get(%s, %d) out of range", Format(args[0]), idx)
		}
		return t[idx-1], nil
	case ir.PrimReduceIdentity:
		r, err := in.reducerOf(n.Arg(0))
		if err != nil {
			return nil, err
		}
		return r.identity(n.Type)
	case ir.PrimReduce:
		return nil, fmt.Errorf("reduce expression was not lowered")
	}
	return nil, fmt.Errorf("unknown primitive %s", n.Prim)
}
