// Package funcspec parses entry-point specifications.
//
// A specification binds a logical library operation to the function name
// that implements it. Format: "op=name", for example
// "to-follower=_toFollower". Lists are comma separated.
package funcspec

import (
	"fmt"
	"strings"

	"github.com/mpyw/forall/internal/ir"
)

// Spec holds the parsed components of an entry-point specification.
type Spec struct {
	Op       string
	FuncName string
}

// Parse parses a single "op=name" specification.
func Parse(s string) (Spec, error) {
	op, name, ok := strings.Cut(strings.TrimSpace(s), "=")
	op = strings.TrimSpace(op)
	name = strings.TrimSpace(name)
	if !ok || op == "" || name == "" {
		return Spec{}, fmt.Errorf("invalid entry-point specification %q (want op=name)", s)
	}
	return Spec{Op: op, FuncName: name}, nil
}

// ParseList parses a comma-separated list of specifications. An empty
// string yields no specifications.
func ParseList(s string) ([]Spec, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var specs []Spec
	for _, part := range strings.Split(s, ",") {
		spec, err := Parse(part)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Matches reports whether fn is the function s names.
func (s Spec) Matches(fn *ir.Symbol) bool {
	return fn != nil && fn.Kind == ir.SymFn && fn.Name == s.FuncName
}
