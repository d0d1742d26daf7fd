package diag

import (
	"bytes"
	"fmt"
	"go/token"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"golang.org/x/tools/go/analysis"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[1;31m"
	colorBlue  = "\033[1;34m"
	colorCyan  = "\033[1;36m"
)

// UseColor decides whether output written to f should be coloured.
// mode is one of "always", "never" or "auto".
func UseColor(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Formatter renders diagnostics with source context.
type Formatter struct {
	Fset *token.FileSet
	// Sources maps file names to their contents. Files without an entry are
	// rendered without a source excerpt.
	Sources map[string][]byte
	Color   bool
}

// Format writes d and its notes to w.
func (f *Formatter) Format(w io.Writer, d analysis.Diagnostic) {
	var sb strings.Builder
	f.header(&sb, d.Pos, d.Category, d.Message, colorRed)
	f.excerpt(&sb, d.Pos)
	for _, rel := range d.Related {
		f.header(&sb, rel.Pos, "note", rel.Message, colorCyan)
	}
	_, _ = io.WriteString(w, sb.String())
}

// FormatAll writes every diagnostic followed by a summary line.
func (f *Formatter) FormatAll(w io.Writer, diags []analysis.Diagnostic) {
	for _, d := range diags {
		f.Format(w, d)
	}
	if len(diags) > 0 {
		f.paint(w, colorRed, fmt.Sprintf("%d error(s) found\n", len(diags)))
	}
}

func (f *Formatter) header(sb *strings.Builder, pos token.Pos, level, msg, color string) {
	if loc := f.location(pos); loc != "" {
		f.paintTo(sb, colorBlue, loc)
		sb.WriteString(": ")
	}
	f.paintTo(sb, color, level+":")
	sb.WriteString(" ")
	sb.WriteString(msg)
	sb.WriteString("\n")
}

func (f *Formatter) location(pos token.Pos) string {
	if f.Fset == nil || !pos.IsValid() {
		return ""
	}
	return f.Fset.Position(pos).String()
}

func (f *Formatter) excerpt(sb *strings.Builder, pos token.Pos) {
	if f.Fset == nil || !pos.IsValid() {
		return
	}
	p := f.Fset.Position(pos)
	line := sourceLine(f.Sources[p.Filename], p.Line)
	if line == "" {
		return
	}
	lineNum := fmt.Sprintf("%d", p.Line)
	padding := strings.Repeat(" ", len(lineNum)+1)

	sb.WriteString(lineNum)
	sb.WriteString(" | ")
	sb.WriteString(line)
	sb.WriteString("\n")
	sb.WriteString(padding)
	sb.WriteString("| ")
	if p.Column > 0 {
		// Column is a byte offset; the caret goes under the display column.
		col := min(p.Column-1, len(line))
		sb.WriteString(strings.Repeat(" ", runewidth.StringWidth(line[:col])))
		f.paintTo(sb, colorRed, "^")
	}
	sb.WriteString("\n")
}

func (f *Formatter) paint(w io.Writer, color, s string) {
	var sb strings.Builder
	f.paintTo(&sb, color, s)
	_, _ = io.WriteString(w, sb.String())
}

func (f *Formatter) paintTo(sb *strings.Builder, color, s string) {
	if f.Color {
		sb.WriteString(color)
	}
	sb.WriteString(s)
	if f.Color {
		sb.WriteString(colorReset)
	}
}

func sourceLine(src []byte, line int) string {
	if len(src) == 0 || line <= 0 {
		return ""
	}
	lines := bytes.Split(src, []byte("\n"))
	if line > len(lines) {
		return ""
	}
	return strings.TrimRight(string(lines[line-1]), "\r")
}
