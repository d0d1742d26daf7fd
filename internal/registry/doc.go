// Package registry provides the table of library entry points the forall
// pass emits calls to.
//
// # Overview
//
// The pass never hard-codes library function names at call sites. It asks
// the registry for the name bound to a logical [Op] and builds an unresolved
// call that the resolver binds later.
//
// # Registry Structure
//
//	type Registry struct {
//	    names map[Op]string     // op -> function name
//	    fns   func(string) []*ir.Symbol
//	}
//
//	type Entry struct {
//	    Op   Op      // logical operation
//	    Key  string  // "to-follower", used by -entry-points
//	    Name string  // "_toFollower"
//	}
//
// # Population and Validation
//
// [New] populates the table from [DefaultEntries]. [Registry.Override]
// rebinds entries from funcspec specifications before first use. The first
// lookup validates that every bound name is declared; after that the table
// is frozen.
//
//	reg := registry.New(tree)
//	if err := reg.Override(specs); err != nil { ... }
//	call := reg.Call(pos, registry.OpToFollower, iterRec, followThis)
//
// # Lookup
//
// [Registry.Call] builds an unresolved call. [Registry.Fn] returns the
// declared function for ops that are referenced directly, such as the
// trivial leader.
package registry
