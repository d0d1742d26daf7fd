package fixture

import (
	"fmt"
	"go/token"
	"slices"
	"strconv"
	"strings"
	"text/scanner"

	"gopkg.in/yaml.v3"

	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/shadow"
)

// Surface reduce operators, including the ones spelled with two tokens.
var reduceOps = map[string]bool{"+": true, "*": true, "max": true, "min": true, "&&": true, "||": true}

type tok struct {
	kind rune
	text string
	off  int
}

// parser reads one scalar: a statement, an expression or a with-clause
// entry.
type parser struct {
	b    *builder
	node *yaml.Node
	toks []tok
	i    int
}

func (b *builder) parser(n *yaml.Node) (*parser, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(n.Value))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.SkipComments

	var scanErr error
	s.Error = func(s *scanner.Scanner, msg string) {
		if scanErr == nil {
			scanErr = b.errorf(n, "%s", msg)
		}
	}

	p := &parser{b: b, node: n}
	for r := s.Scan(); r != scanner.EOF; r = s.Scan() {
		p.toks = append(p.toks, tok{kind: r, text: s.TokenText(), off: s.Position.Offset})
	}
	if scanErr != nil {
		return nil, scanErr
	}
	p.toks = append(p.toks, tok{kind: scanner.EOF, off: len(n.Value)})
	return p, nil
}

func (p *parser) peek(k int) tok {
	if p.i+k >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+k]
}

func (p *parser) next() tok {
	t := p.peek(0)
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}

func (p *parser) pos() token.Pos { return p.b.pos(p.node, p.peek(0).off) }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%s: %s", p.b.tree.Fset.Position(p.pos()), fmt.Sprintf(format, args...))
}

func (p *parser) isIdent(text string) bool {
	t := p.peek(0)
	return t.kind == scanner.Ident && t.text == text
}

func (p *parser) expect(kind rune) error {
	if t := p.next(); t.kind != kind {
		return p.errorf("expected %s, found %q", scanner.TokenString(kind), t.text)
	}
	return nil
}

func (p *parser) end() error {
	if t := p.peek(0); t.kind != scanner.EOF {
		return p.errorf("unexpected %q", t.text)
	}
	return nil
}

// reduceOp consumes a surface reduce operator followed by "reduce".
func (p *parser) reduceOp() (string, bool) {
	t0, t1 := p.peek(0), p.peek(1)
	op, n := t0.text, 1
	if (t0.kind == '&' || t0.kind == '|') && t1.kind == t0.kind && t1.off == t0.off+1 {
		op, n = t0.text+t1.text, 2
	}
	if !reduceOps[op] {
		return "", false
	}
	if r := p.peek(n); r.kind != scanner.Ident || r.text != "reduce" {
		return "", false
	}
	p.i += n + 1
	return op, true
}

// statement parses and appends one statement:
//
//	var x [: type] [= e]   x = e   x += e   x reduce= e   f(args)
func (p *parser) statement() error {
	b := p.b
	pos := p.pos()

	if p.isIdent("var") || p.isIdent("const") {
		p.next()
		name := p.next()
		if name.kind != scanner.Ident {
			return p.errorf("expected a variable name, found %q", name.text)
		}
		var typ *ir.Type
		if p.peek(0).kind == ':' {
			p.next()
			t, err := p.typeName()
			if err != nil {
				return err
			}
			typ = t
		}
		var init *ir.Node
		if p.peek(0).kind == '=' {
			p.next()
			e, err := p.expr()
			if err != nil {
				return err
			}
			init = e
		}
		if err := p.end(); err != nil {
			return err
		}
		v := b.tree.NewVar(pos, name.text, typ)
		b.block.InsertAtTail(b.tree.Def(pos, v, init, nil))
		b.scope.names[name.text] = v
		return nil
	}

	if t := p.peek(0); t.kind == scanner.Ident && p.peek(1).kind != '(' {
		target, err := p.variable()
		if err != nil {
			return err
		}
		var prim ir.Prim
		switch {
		case p.peek(0).kind == '=':
			p.next()
			prim = ir.PrimMove
		case p.peek(0).kind == '+' && p.peek(1).kind == '=':
			p.i += 2
			prim = ir.PrimAddAssign
		case p.isIdent("reduce") && p.peek(1).kind == '=':
			p.i += 2
			prim = ir.PrimReduceAssign
		default:
			return p.errorf("expected an assignment to %s", t.text)
		}
		rhs, err := p.expr()
		if err != nil {
			return err
		}
		if err := p.end(); err != nil {
			return err
		}
		if prim == ir.PrimMove {
			b.block.InsertAtTail(b.tree.Move(pos, target, rhs))
		} else {
			b.block.InsertAtTail(b.tree.Prim(pos, prim, b.tree.Ref(pos, target), rhs))
		}
		return nil
	}

	e, err := p.expr()
	if err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}
	if e.Kind != ir.KindCall || e.Prim != ir.PrimNone {
		return fmt.Errorf("%s: expression statement must be a call", b.tree.Fset.Position(pos))
	}
	b.block.InsertAtTail(e)
	return nil
}

// withClause parses a with-clause entry:
//
//	op reduce x   [const|ref|in|var ...] x [: type] [= e]
func (p *parser) withClause() (*ir.Symbol, error) {
	b := p.b
	if op, ok := p.reduceOp(); ok {
		name := p.next()
		if name.kind != scanner.Ident {
			return nil, p.errorf("expected a variable name, found %q", name.text)
		}
		if err := p.end(); err != nil {
			return nil, err
		}
		pos := p.b.pos(p.node, name.off)
		return b.shadows.BuildFromReduceIntent(b.tree.Unresolved(pos, name.text), b.tree.Ref(pos, b.lib.ReduceOp(op))), nil
	}

	prefix := shadow.PrefixConst
	words := 0
	for p.isIdent("const") || p.isIdent("ref") || p.isIdent("in") || p.isIdent("var") {
		words++
		switch w := p.next().text; {
		case w == "const":
			prefix = shadow.PrefixConst
		case w == "var":
			prefix = shadow.PrefixVar
		case w == "ref" && prefix == shadow.PrefixConst && words == 2:
			prefix = shadow.PrefixConstRef
		case w == "in" && prefix == shadow.PrefixConst && words == 2:
			prefix = shadow.PrefixConstIn
		case w == "ref":
			prefix = shadow.PrefixRef
		case w == "in":
			prefix = shadow.PrefixIn
		}
	}
	if words == 0 {
		return nil, p.errorf("with-clause entry needs an intent or a reduce operator")
	}

	name := p.next()
	if name.kind != scanner.Ident {
		return nil, p.errorf("expected a variable name, found %q", name.text)
	}
	pos := p.b.pos(p.node, name.off)

	var typeExpr, init *ir.Node
	if p.peek(0).kind == ':' {
		p.next()
		typ, err := p.typeName()
		if err != nil {
			return nil, err
		}
		typeExpr = b.tree.Ref(pos, typ.Sym)
	}
	if p.peek(0).kind == '=' {
		p.next()
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		init = e
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return b.shadows.BuildForPrefix(prefix, b.tree.Unresolved(pos, name.text), typeExpr, init), nil
}

func (p *parser) typeName() (*ir.Type, error) {
	t := p.next()
	typ := p.b.tree.LookupType(t.text)
	if t.kind != scanner.Ident || typ == nil {
		return nil, p.errorf("unknown type %q", t.text)
	}
	return typ, nil
}

func (p *parser) variable() (*ir.Symbol, error) {
	t := p.next()
	sym := p.b.scope.lookup(t.text)
	if sym == nil {
		return nil, fmt.Errorf("%s: undefined: %s", p.b.tree.Fset.Position(p.b.pos(p.node, t.off)), t.text)
	}
	return sym, nil
}

// wholeExpr parses a scalar holding a single expression.
func (p *parser) wholeExpr() (*ir.Node, error) {
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return e, nil
}

// expr parses
//
//	op reduce expr | sum [.. sum]
func (p *parser) expr() (*ir.Node, error) {
	pos := p.pos()
	if op, ok := p.reduceOp(); ok {
		data, err := p.expr()
		if err != nil {
			return nil, err
		}
		return p.reduce(pos, op, data), nil
	}

	lo, err := p.sum()
	if err != nil {
		return nil, err
	}
	if p.peek(0).kind == '.' && p.peek(1).kind == '.' {
		p.i += 2
		hi, err := p.sum()
		if err != nil {
			return nil, err
		}
		return p.b.tree.CallName(pos, "chpl_build_bounded_range", lo, hi), nil
	}
	return lo, nil
}

// reduce builds "op reduce data" over a temporary holding data. A zip is
// held component by component.
func (p *parser) reduce(pos token.Pos, op string, data *ir.Node) *ir.Node {
	b := p.b
	t := b.tree
	zippered := t.False
	if data.IsPrim(ir.PrimZip) {
		zip := t.Prim(data.Pos, ir.PrimZip)
		for _, a := range slices.Clone(data.Args()) {
			zip.InsertAtTail(t.Ref(a.Pos, b.hold(a.Remove())))
		}
		data = zip
		zippered = t.True
	}
	held := b.hold(data)
	return t.Prim(pos, ir.PrimReduce, t.Ref(pos, b.lib.ReduceOp(op)), t.Ref(pos, held), t.Ref(pos, zippered))
}

func (p *parser) sum() (*ir.Node, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.peek(0).kind == '+' && p.peek(1).kind != '=' {
		pos := p.pos()
		p.next()
		y, err := p.primary()
		if err != nil {
			return nil, err
		}
		x = p.b.tree.Prim(pos, ir.PrimAdd, x, y)
	}
	return x, nil
}

func (p *parser) primary() (*ir.Node, error) {
	t := p.b.tree
	pos := p.pos()
	tk := p.peek(0)
	switch tk.kind {
	case scanner.Int:
		p.next()
		v, err := strconv.ParseInt(tk.text, 0, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %s", tk.text)
		}
		return t.Ref(pos, t.Imm(v)), nil
	case '(':
		p.next()
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return e, nil
	case scanner.Ident:
	default:
		return nil, p.errorf("unexpected %q", tk.text)
	}

	p.next()
	switch tk.text {
	case "true":
		return t.Ref(pos, t.True), nil
	case "false":
		return t.Ref(pos, t.False), nil
	}
	if p.peek(0).kind != '(' {
		if sym := p.b.scope.lookup(tk.text); sym != nil {
			return t.Ref(pos, sym), nil
		}
		if typ := t.LookupType(tk.text); typ != nil {
			return t.Ref(pos, typ.Sym), nil
		}
		return nil, fmt.Errorf("%s: undefined: %s", t.Fset.Position(pos), tk.text)
	}

	p.next()
	var args []*ir.Node
	for p.peek(0).kind != ')' {
		if len(args) > 0 {
			if err := p.expect(','); err != nil {
				return nil, err
			}
		}
		a, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	p.next()
	if tk.text == "zip" {
		if len(args) < 2 {
			return nil, fmt.Errorf("%s: zip needs at least two iterables", t.Fset.Position(pos))
		}
		return t.Prim(pos, ir.PrimZip, args...), nil
	}
	return t.CallName(pos, tk.text, args...), nil
}
