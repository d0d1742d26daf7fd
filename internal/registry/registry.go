package registry

import (
	"errors"
	"fmt"
	"go/token"
	"sync"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/funcspec"
	"github.com/mpyw/forall/internal/ir"
)

// Registry holds the entry-point table of one compilation.
type Registry struct {
	tree  *ir.Tree
	names map[Op]string
	keys  map[string]Op

	once   sync.Once
	err    error
	frozen bool
}

// New creates a registry populated with DefaultEntries.
func New(tree *ir.Tree) *Registry {
	r := &Registry{
		tree:  tree,
		names: make(map[Op]string, len(DefaultEntries)),
		keys:  make(map[string]Op, len(DefaultEntries)),
	}
	for _, e := range DefaultEntries {
		r.names[e.Op] = e.Name
		r.keys[e.Key] = e.Op
	}
	return r
}

// Override rebinds entries. It must be called before the first lookup.
func (r *Registry) Override(specs []funcspec.Spec) error {
	if r.frozen {
		return errors.New("entry points already in use")
	}
	for _, s := range specs {
		op, ok := r.keys[s.Op]
		if !ok {
			return fmt.Errorf("unknown entry point %q", s.Op)
		}
		r.names[op] = s.FuncName
	}
	return nil
}

// Validate checks once that every bound name has a declared function.
func (r *Registry) Validate() error {
	r.once.Do(func() {
		r.frozen = true
		var errs []error
		for op := Op(0); op < numOps; op++ {
			spec := funcspec.Spec{FuncName: r.names[op]}
			if !r.declared(spec) {
				errs = append(errs, fmt.Errorf("library entry point %q is not declared", spec.FuncName))
			}
		}
		r.err = errors.Join(errs...)
	})
	return r.err
}

func (r *Registry) declared(spec funcspec.Spec) bool {
	for _, fn := range r.tree.Fns(spec.FuncName) {
		if spec.Matches(fn) {
			return true
		}
	}
	return false
}

// Name returns the function name bound to op.
func (r *Registry) Name(op Op) string {
	err := r.Validate()
	diag.Assert(err == nil, "%v", err)
	return r.names[op]
}

// Call builds an unresolved call of op.
func (r *Registry) Call(pos token.Pos, op Op, args ...*ir.Node) *ir.Node {
	return r.tree.CallName(pos, r.Name(op), args...)
}

// Fn returns the first function declared for op.
func (r *Registry) Fn(op Op) *ir.Symbol {
	fns := r.tree.Fns(r.Name(op))
	diag.Assert(len(fns) > 0, "no function for %s", r.names[op])
	return fns[0]
}
