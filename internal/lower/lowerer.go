// Package lower resolves forall statements and lowers them into the shapes
// later stages consume.
//
// For every forall the pass picks a parallel iterator (standalone, leader
// or serial), restructures the induction variables, builds leader/follower
// loops or the zippered-serial fallback, resolves shadow variables and
// prepares the recursive-iterator scaffold. Reduce expressions are turned
// into foralls that go through the same pipeline.
package lower

import (
	"errors"
	"fmt"

	"github.com/mpyw/forall/internal/config"
	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
	"github.com/mpyw/forall/internal/logging"
	"github.com/mpyw/forall/internal/registry"
	"github.com/mpyw/forall/internal/shadow"
)

// Resolver is the call resolution the pass relies on.
type Resolver interface {
	// TryResolve binds call if possible, reporting nothing on failure.
	TryResolve(call *ir.Node) bool
	// Resolve binds call or reports why it cannot be bound.
	Resolve(call *ir.Node) error
	ResolveStmt(stmt *ir.Node) error
	ResolveBlock(block *ir.Node) error
	// Normalize hoists nested calls of statements into temporaries.
	Normalize(n *ir.Node)
	// FoldType evaluates an iterator-index-type query to a type reference.
	FoldType(call *ir.Node) (*ir.Node, bool)
	IteratorGroup(fn *ir.Symbol) *ir.IteratorGroup
	TypeOf(n *ir.Node) *ir.Type
}

// Lowerer runs the forall pass over one tree.
type Lowerer struct {
	tree     *ir.Tree
	lib      *library.Library
	registry *registry.Registry
	resolver Resolver
	shadows  *shadow.Builder
	diag     *diag.Reporter
	cfg      config.Config
	log      logging.Logger

	trivial trivialLeader
	stats   Stats
}

// Stats counts what the pass produced.
type Stats struct {
	Foralls     int
	Standalone  int
	Leader      int
	Serial      int
	ZipSerial   int
	Reduces     int
	Stopped     int
	RecCommit   int
	RecDiscard  int
	FastFollows int
}

// New creates a Lowerer.
func New(
	tree *ir.Tree,
	lib *library.Library,
	reg *registry.Registry,
	resolver Resolver,
	reporter *diag.Reporter,
	cfg config.Config,
	log logging.Logger,
) *Lowerer {
	if log == nil {
		log = logging.Nop()
	}
	return &Lowerer{
		tree:     tree,
		lib:      lib,
		registry: reg,
		resolver: resolver,
		shadows:  shadow.NewBuilder(tree, reporter),
		diag:     reporter,
		cfg:      cfg,
		log:      log,
	}
}

// Stats returns the counters collected so far.
func (l *Lowerer) Stats() Stats { return l.stats }

// Run lowers every forall and reduce expression in the tree, in program
// order, then runs the finishing checks. Each root block is a unit: a fatal
// error stops its unit and the remaining units are still processed. The
// returned error joins the fatal errors.
func (l *Lowerer) Run() error {
	if err := l.registry.Validate(); err != nil {
		return fmt.Errorf("library: %w", err)
	}

	var errs []error
	for _, root := range l.tree.Roots() {
		if err := l.lowerBlock(root); err != nil {
			if !diag.IsFatal(err) {
				return err
			}
			errs = append(errs, err)
		}
	}
	l.finish()
	return errors.Join(errs...)
}

// lowerBlock walks the statements of b in order. Statements inserted before
// the current one are not revisited; reduce lowering restarts the walk at
// its anchor so the forall it creates is lowered next.
func (l *Lowerer) lowerBlock(b *ir.Node) error {
	for s := b.First(); s != nil; {
		if red := findReduce(s); red != nil {
			anchor, err := l.LowerPrimReduce(red)
			if err != nil {
				return err
			}
			s = anchor
			continue
		}
		if err := l.lowerStmt(s); err != nil {
			return err
		}
		s = s.Next()
	}
	return nil
}

func (l *Lowerer) lowerStmt(s *ir.Node) error {
	switch s.Kind {
	case ir.KindForall:
		return l.lowerForall(s)
	case ir.KindBlock, ir.KindFor:
		return l.lowerBlock(s)
	case ir.KindCond:
		if err := l.resolver.ResolveStmt(s); err != nil {
			return err
		}
		if err := l.lowerBlock(s.Then()); err != nil {
			return err
		}
		if els := s.Else(); els != nil {
			return l.lowerBlock(els)
		}
	case ir.KindDefer:
		if body := s.Expr(); body.Kind == ir.KindBlock {
			return l.lowerBlock(body)
		}
		return l.resolver.ResolveStmt(s)
	case ir.KindCall, ir.KindDef:
		return l.resolver.ResolveStmt(s)
	}
	return nil
}

func (l *Lowerer) lowerForall(fs *ir.Node) error {
	l.stats.Foralls++
	if _, err := l.ResolveForallHeader(fs); err != nil {
		if errors.Is(err, diag.ErrStop) {
			l.stats.Stopped++
			l.log.Debugf("forall lowering stopped after errors at %s", l.tree.Fset.Position(fs.Pos))
			return nil
		}
		return err
	}
	if err := l.resolver.ResolveBlock(fs.LoopBody()); err != nil {
		return err
	}
	return l.lowerBlock(fs.LoopBody())
}

// findReduce returns the first reduce expression in the expression tree of
// statement s. Nested statements are not searched.
func findReduce(s *ir.Node) *ir.Node {
	var found *ir.Node
	var visit func(n *ir.Node)
	visit = func(n *ir.Node) {
		if n == nil || found != nil {
			return
		}
		switch n.Kind {
		case ir.KindCall:
			if n.Prim == ir.PrimReduce {
				for _, a := range n.Args() {
					visit(a)
				}
				if found == nil {
					found = n
				}
				return
			}
			for _, k := range n.Kids() {
				visit(k)
			}
		case ir.KindNamed:
			visit(n.Expr())
		case ir.KindDef:
			visit(n.Init())
		}
	}
	visit(s)
	return found
}
