package lower

import (
	"go/token"
	"sync"

	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/registry"
)

// trivialLeader caches the resolved trivial leader. It is valid for the
// lifetime of one Lowerer, which is one compilation.
type trivialLeader struct {
	once  sync.Once
	fn    *ir.Symbol
	yield *ir.Type
	err   error
}

// trivialLeaderCall returns a resolved call of the trivial leader, resolving
// the entry point on first use.
func (l *Lowerer) trivialLeaderCall(pos token.Pos) (*ir.Node, error) {
	l.trivial.once.Do(func() {
		call := l.registry.Call(pos, registry.OpTrivialLeader)
		l.tree.Module.InsertAtTail(call)
		l.trivial.err = l.resolver.Resolve(call)
		call.Remove()
		if l.trivial.err != nil {
			return
		}
		l.trivial.fn = call.Fn
		l.trivial.yield = call.Fn.Fn.Yield.Type
	})
	if l.trivial.err != nil {
		return nil, l.trivial.err
	}

	call := l.tree.CallFn(pos, l.trivial.fn)
	if err := l.resolver.Resolve(call); err != nil {
		return nil, err
	}
	return call, nil
}
