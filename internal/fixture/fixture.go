// Package fixture loads program fixtures: YAML documents describing
// variables, statements and forall loops, written in a small expression
// language.
//
//	name: sum over a leader
//	program:
//	  - var total = 0
//	  - forall:
//	      index: [i]
//	      in: span(1, 8)
//	      with: [+ reduce total]
//	      body:
//	        - total reduce= i
//	  - emit(total)
//
// The loaded tree is in the shape the pass expects: names are bound to
// their symbols, every iterable that is not a variable is held by a
// temporary defined just before its loop, and reduce expressions operate on
// temporaries.
package fixture

import (
	"bytes"
	"fmt"
	"go/token"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
	"github.com/mpyw/forall/internal/shadow"
)

// Program is a loaded fixture.
type Program struct {
	Name     string
	Filename string
	Source   []byte
	Tree     *ir.Tree
	Lib      *library.Library
}

type document struct {
	Name    string      `yaml:"name"`
	Program []yaml.Node `yaml:"program"`
}

type forallDoc struct {
	Index    []string    `yaml:"index"`
	In       yaml.Node   `yaml:"in"`
	SerialOK bool        `yaml:"serial-ok"`
	Serial   bool        `yaml:"serial"`
	FromFor  bool        `yaml:"from-for"`
	With     []yaml.Node `yaml:"with"`
	Body     []yaml.Node `yaml:"body"`
}

type stmtDoc struct {
	Forall *forallDoc `yaml:"forall"`
}

// LoadFile reads and loads the fixture at path.
func LoadFile(fset *token.FileSet, path string, reporter *diag.Reporter) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(fset, path, src, reporter)
}

// Load parses src and builds its tree. Errors that the shadow-variable
// builder diagnoses go to reporter; malformed fixtures are returned as
// errors.
func Load(fset *token.FileSet, filename string, src []byte, reporter *diag.Reporter) (*Program, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	if fset == nil {
		fset = token.NewFileSet()
	}
	file := fset.AddFile(filename, -1, len(src))
	file.SetLinesForContent(src)

	tree := ir.NewTree(fset)
	b := &builder{
		tree:    tree,
		lib:     library.Declare(tree),
		shadows: shadow.NewBuilder(tree, reporter),
		file:    file,
		block:   tree.Module,
		scope:   newScope(nil),
	}
	if err := b.stmts(doc.Program); err != nil {
		return nil, err
	}
	return &Program{
		Name:     doc.Name,
		Filename: filename,
		Source:   src,
		Tree:     tree,
		Lib:      b.lib,
	}, nil
}

type scope struct {
	parent *scope
	names  map[string]*ir.Symbol
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]*ir.Symbol)}
}

func (s *scope) lookup(name string) *ir.Symbol {
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.names[name]; ok {
			return sym
		}
	}
	return nil
}

type builder struct {
	tree    *ir.Tree
	lib     *library.Library
	shadows *shadow.Builder
	file    *token.File

	// block receives the statements being built; scope names what they
	// may refer to.
	block *ir.Node
	scope *scope
}

// pos maps a YAML line and column plus a byte offset into the scalar.
func (b *builder) pos(n *yaml.Node, inner int) token.Pos {
	if n.Line <= 0 || n.Line > b.file.LineCount() {
		return token.NoPos
	}
	off := int(b.file.LineStart(n.Line)) - b.file.Base() + n.Column - 1 + inner
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		off++
	}
	return b.file.Pos(min(off, b.file.Size()))
}

func (b *builder) errorf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%s: %s", b.tree.Fset.Position(b.pos(n, 0)), fmt.Sprintf(format, args...))
}

func (b *builder) stmts(nodes []yaml.Node) error {
	for i := range nodes {
		if err := b.stmt(&nodes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) stmt(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		p, err := b.parser(n)
		if err != nil {
			return err
		}
		return p.statement()
	case yaml.MappingNode:
		var s stmtDoc
		if err := n.Decode(&s); err != nil {
			return b.errorf(n, "%v", err)
		}
		if s.Forall == nil {
			return b.errorf(n, "statement mapping must be a forall")
		}
		return b.forall(n, s.Forall)
	}
	return b.errorf(n, "statement must be a string or a forall mapping")
}

func (b *builder) forall(n *yaml.Node, doc *forallDoc) error {
	pos := b.pos(n, 0)
	if doc.In.Kind != yaml.ScalarNode {
		return b.errorf(n, "forall needs an iterable expression under 'in'")
	}
	p, err := b.parser(&doc.In)
	if err != nil {
		return err
	}
	iterExpr, err := p.wholeExpr()
	if err != nil {
		return err
	}

	zippered := iterExpr.IsPrim(ir.PrimZip)
	components := []*ir.Node{iterExpr}
	if zippered {
		components = nil
		for _, a := range slices.Clone(iterExpr.Args()) {
			components = append(components, a.Remove())
		}
	}
	if len(doc.Index) != len(components) {
		return b.errorf(n, "forall has %d index variables for %d iterables", len(doc.Index), len(components))
	}

	var iterables []*ir.Node
	for _, c := range components {
		iterables = append(iterables, b.tree.Ref(c.Pos, b.hold(c)))
	}

	inner := newScope(b.scope)
	var indices []*ir.Node
	for _, name := range doc.Index {
		idx := b.tree.NewVar(pos, name, nil)
		indices = append(indices, b.tree.Def(pos, idx, nil, nil))
		inner.names[name] = idx
	}

	var shadows []*ir.Node
	for i := range doc.With {
		w := &doc.With[i]
		if w.Kind != yaml.ScalarNode {
			return b.errorf(w, "with-clause entry must be a string")
		}
		wp, err := b.parser(w)
		if err != nil {
			return err
		}
		svar, err := wp.withClause()
		if err != nil {
			return err
		}
		shadows = append(shadows, svar.Def)
		inner.names[svar.Name] = svar
	}

	body := b.tree.Block(pos)
	outerBlock, outerScope := b.block, b.scope
	b.block, b.scope = body, inner
	err = b.stmts(doc.Body)
	b.block, b.scope = outerBlock, outerScope
	if err != nil {
		return err
	}

	b.block.InsertAtTail(b.tree.Forall(pos, iterables, indices, shadows, body, ir.ForallInfo{
		Zippered:      zippered,
		FromForLoop:   doc.FromFor,
		AllowSerial:   doc.SerialOK,
		RequireSerial: doc.Serial,
	}))
	return nil
}

// hold returns the variable e refers to, or a temporary initialized to e
// just before the statement being built.
func (b *builder) hold(e *ir.Node) *ir.Symbol {
	if e.Kind == ir.KindSymExpr && e.Sym.Kind != ir.SymConst {
		return e.Sym
	}
	tmp := b.tree.NewTemp("call_tmp", nil)
	b.block.InsertAtTail(b.tree.Def(e.Pos, tmp, nil, nil))
	b.block.InsertAtTail(b.tree.Move(e.Pos, tmp, e))
	return tmp
}
