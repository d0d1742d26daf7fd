package ir

import (
	"io"
	"strings"
)

// Fprint writes a readable rendering of n to w.
func Fprint(w io.Writer, n *Node) error {
	p := &printer{}
	p.stmt(n)
	_, err := io.WriteString(w, p.sb.String())
	return err
}

// Sprint renders n as Fprint does.
func Sprint(n *Node) string {
	p := &printer{}
	p.stmt(n)
	return p.sb.String()
}

// String renders n as an expression on a single line.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	var sb strings.Builder
	expr(&sb, n)
	return sb.String()
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) line(s string) {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
	p.sb.WriteString(s)
	p.sb.WriteString("\n")
}

func (p *printer) open(head string) {
	p.line(head + " {")
	p.indent++
}

func (p *printer) close() {
	p.indent--
	p.line("}")
}

func (p *printer) stmts(nodes []*Node) {
	for _, s := range nodes {
		p.stmt(s)
	}
}

func (p *printer) stmt(n *Node) {
	switch n.Kind {
	case KindBlock, KindList:
		head := ""
		switch {
		case n.TypeOnly:
			head = "type"
		case n.Scopeless:
			head = "scopeless"
		}
		if head == "" {
			p.line("{")
			p.indent++
		} else {
			p.open(head)
		}
		p.stmts(n.List())
		p.close()
	case KindDef:
		p.line(defString(n))
	case KindForall:
		p.forall(n)
	case KindFor:
		head := "for " + n.Index.String() + " in " + n.Iter.String()
		if n.Zippered {
			head += " zip"
		}
		p.open(head)
		p.stmts(n.List())
		p.close()
	case KindCond:
		p.open("if " + n.CondExpr().String())
		p.stmts(n.Then().List())
		if els := n.Else(); els != nil {
			p.indent--
			p.line("} else {")
			p.indent++
			p.stmts(els.List())
		}
		p.close()
	case KindDefer:
		if body := n.Expr(); body.Kind == KindBlock {
			p.open("defer")
			p.stmts(body.List())
			p.close()
		} else {
			p.line("defer " + body.String())
		}
	default:
		p.line(n.String())
	}
}

func (p *printer) forall(n *Node) {
	var sb strings.Builder
	sb.WriteString("forall")
	if n.Info.Zippered {
		sb.WriteString(" zip")
	}
	sb.WriteString(" (")
	for i, d := range n.IndexVars().List() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.Sym.Name)
	}
	sb.WriteString(") in (")
	for i, e := range n.IterExprs().List() {
		if i > 0 {
			sb.WriteString(", ")
		}
		expr(&sb, e)
	}
	sb.WriteString(")")
	if n.ShadowVars().Len() > 0 {
		sb.WriteString(" with (")
		for i, d := range n.ShadowVars().List() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(shadowString(d.Sym))
		}
		sb.WriteString(")")
	}
	p.open(sb.String())
	p.stmts(n.LoopBody().List())
	p.close()
}

func defString(n *Node) string {
	var sb strings.Builder
	sb.WriteString("def ")
	sb.WriteString(n.Sym.Name)
	if n.Sym.Type != nil {
		sb.WriteString(": ")
		sb.WriteString(n.Sym.QualType().String())
	}
	if te := n.TypeExpr(); te != nil {
		sb.WriteString(" type ")
		expr(&sb, te)
	}
	if init := n.Init(); init != nil {
		sb.WriteString(" = ")
		expr(&sb, init)
	}
	return sb.String()
}

func shadowString(s *Symbol) string {
	sh := s.Shadow
	var sb strings.Builder
	sb.WriteString(sh.Intent.String())
	sb.WriteString(" ")
	sb.WriteString(s.Name)
	if sh.Intent.HasOuter() {
		sb.WriteString(" <- ")
		sb.WriteString(sh.OuterName)
	}
	if sh.ReduceOp != nil {
		sb.WriteString(" by ")
		expr(&sb, sh.ReduceOp)
	}
	return sb.String()
}

func expr(sb *strings.Builder, n *Node) {
	switch n.Kind {
	case KindSymExpr:
		sb.WriteString(n.Sym.Name)
	case KindUnresolved:
		sb.WriteString(n.Name)
	case KindNamed:
		sb.WriteString(n.Name)
		sb.WriteString("=")
		expr(sb, n.Expr())
	case KindCall:
		if n.Prim != PrimNone {
			sb.WriteString(n.Prim.String())
		} else if b := n.Base(); b != nil {
			expr(sb, b)
		}
		sb.WriteString("(")
		for i, a := range n.Args() {
			if i > 0 {
				sb.WriteString(", ")
			}
			expr(sb, a)
		}
		sb.WriteString(")")
	case KindDef:
		sb.WriteString(defString(n))
	default:
		sb.WriteString("<" + n.Kind.String() + ">")
	}
}
