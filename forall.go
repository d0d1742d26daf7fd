// Package forall provides the forall resolution and lowering pass.
//
// The pass picks the parallel iterator of every forall loop, rewrites the
// loop into the shape that iterator needs, resolves the loop's shadow
// variables and turns reduce expressions into foralls.
package forall

import (
	"errors"
	"flag"

	"github.com/mpyw/forall/internal/config"
	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/funcspec"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/library"
	"github.com/mpyw/forall/internal/logging"
	"github.com/mpyw/forall/internal/lower"
	"github.com/mpyw/forall/internal/registry"
	"github.com/mpyw/forall/internal/resolve"
)

// Flags for the pass.
var (
	settings    = config.FromEnv()
	entryPoints string
)

func init() {
	settings.RegisterFlags(&Pass.Flags)
	Pass.Flags.StringVar(&entryPoints, "entry-points", "",
		"comma-separated op=name overrides of library entry points (e.g., to-follower=_myToFollower)")
}

// Driver describes a pass over one program. It has the shape of
// analysis.Analyzer so the command line can be wired the same way, but it
// runs over an ir.Tree rather than Go packages and so cannot be one.
type Driver struct {
	Name  string
	Doc   string
	Flags flag.FlagSet
	Run   func(*Unit) (*Result, error)
}

// Pass is the forall lowering pass.
var Pass = &Driver{
	Name:  "forall",
	Doc:   "resolves forall loops to their parallel iterators and lowers them",
	Run:   run,
	Flags: flag.FlagSet{},
}

// ErrNoTree is returned when a unit has no tree to lower.
var ErrNoTree = errors.New("unit has no tree")

// Unit is one program handed to the pass.
type Unit struct {
	Tree     *ir.Tree
	Lib      *library.Library
	Reporter *diag.Reporter
	// Log receives debug output of the pass; nil discards it.
	Log logging.Logger
}

// Result is what a run produced.
type Result struct {
	Stats    lower.Stats
	Registry *registry.Registry
	// Config is the normalized configuration the pass ran with.
	Config config.Config
}

// Config returns the configuration the flags currently select.
func Config() config.Config {
	c := settings
	c.Normalize()
	return c
}

func run(u *Unit) (*Result, error) {
	if u == nil || u.Tree == nil || u.Lib == nil {
		return nil, ErrNoTree
	}
	if u.Reporter == nil {
		u.Reporter = diag.NewReporter()
	}
	cfg := Config()

	specs, err := funcspec.ParseList(entryPoints)
	if err != nil {
		return nil, err
	}
	reg := registry.New(u.Tree)
	if err := reg.Override(specs); err != nil {
		return nil, err
	}

	res := resolve.New(u.Tree, u.Lib, u.Reporter)
	l := lower.New(u.Tree, u.Lib, reg, res, u.Reporter, cfg, u.Log)
	err = l.Run()
	return &Result{Stats: l.Stats(), Registry: reg, Config: cfg}, err
}
