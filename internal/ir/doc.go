// Package ir provides the program tree the forall pass rewrites.
//
// # Overview
//
// Every [Node] and [Symbol] is allocated by a [Tree], which acts as the arena
// and hands out stable integer IDs. Nodes form a strict tree: each node has
// at most one parent, and every structural edit is an explicit ownership
// transfer.
//
//	Tree
//	 ├── Module (root Block)
//	 │    ├── Def x
//	 │    ├── Call move(x, ...)
//	 │    └── Forall
//	 │         ├── List  iterables
//	 │         ├── List  induction variables (Defs)
//	 │         ├── List  shadow variables (Defs)
//	 │         └── Block loop body
//	 └── function bodies (root Blocks owned by a fn Symbol)
//
// # Slots
//
// Block, List and For nodes hold an ordered statement list. A Call keeps its
// callee in a fixed slot and its actuals as a list. Def, Named, Cond, Forall
// and Defer nodes have fixed slots that may be empty.
//
// # Surgery
//
// [Node.Remove], [Node.Replace], [Node.InsertBefore], [Node.InsertAfter],
// [Node.InsertAtHead], [Node.InsertAtTail] and [Node.FlattenAndRemove] move
// ownership. Inserting a node that still has a parent is an internal error.
//
// # Copy
//
// [Tree.Copy] duplicates a subtree. Definitions inside the subtree receive
// fresh symbols; references are rewritten through a [SymbolMap] that callers
// may seed with their own substitutions.
package ir
