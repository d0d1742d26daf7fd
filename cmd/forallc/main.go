// Command forallc runs the forall lowering pass over program fixtures.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"go/token"
	"io"
	"os"
	"os/signal"

	"github.com/mpyw/forall"
	"github.com/mpyw/forall/internal/diag"
	"github.com/mpyw/forall/internal/fixture"
	"github.com/mpyw/forall/internal/interp"
	"github.com/mpyw/forall/internal/ir"
	"github.com/mpyw/forall/internal/logging"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitDiagnostics = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	dump  bool
	exec  bool
	stats bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := &forall.Pass.Flags
	fs.Init("forallc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "%s: %s\n\nUsage: forallc [flags] fixture.yaml...\n\nFlags:\n", forall.Pass.Name, forall.Pass.Doc)
		fs.PrintDefaults()
	}

	var opts options
	fs.BoolVar(&opts.dump, "dump", false, "print the lowered tree")
	fs.BoolVar(&opts.exec, "run", false, "execute the lowered program and print what it emits")
	fs.BoolVar(&opts.stats, "stats", false, "print pass statistics")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg := forall.Config()
	log := logging.New(logging.ParseLevel(cfg.LogLevel), stderr)

	code := exitOK
	for _, path := range fs.Args() {
		code = max(code, runFile(ctx, path, opts, stdout, stderr, log))
	}
	return code
}

func runFile(ctx context.Context, path string, opts options, stdout, stderr io.Writer, log logging.Logger) int {
	log = log.With(map[string]any{"file": path})
	fset := token.NewFileSet()
	reporter := diag.NewReporter()

	prog, err := fixture.LoadFile(fset, path, reporter)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	res, err := forall.Pass.Run(&forall.Unit{Tree: prog.Tree, Lib: prog.Lib, Reporter: reporter, Log: log})
	if err != nil && !diag.IsFatal(err) {
		fmt.Fprintf(stderr, "%s: %v\n", path, err)
		return exitFailure
	}

	if reporter.HasErrors() {
		diags := reporter.Diagnostics()
		if n := res.Config.MaxErrors; len(diags) > n {
			diags = diags[:n]
		}
		f := &diag.Formatter{
			Fset:    fset,
			Sources: map[string][]byte{path: prog.Source},
			Color:   diag.UseColor(res.Config.Color, fileOf(stderr)),
		}
		f.FormatAll(stderr, diags)
	}

	if opts.stats {
		st := res.Stats
		fmt.Fprintf(stdout, "stats: foralls=%d standalone=%d leader=%d serial=%d zip-serial=%d reduces=%d stopped=%d rec-commit=%d rec-discard=%d fast-follows=%d\n",
			st.Foralls, st.Standalone, st.Leader, st.Serial, st.ZipSerial, st.Reduces, st.Stopped, st.RecCommit, st.RecDiscard, st.FastFollows)
	}
	if opts.dump {
		if err := ir.Fprint(stdout, prog.Tree.Module); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailure
		}
	}
	if reporter.HasErrors() {
		return exitDiagnostics
	}

	if opts.exec {
		in := interp.New(prog.Tree, prog.Lib, res.Registry, res.Config, log)
		err := in.Run(ctx)
		for _, line := range in.Output() {
			fmt.Fprintln(stdout, line)
		}
		if err != nil {
			fmt.Fprintf(stderr, "%s: run: %v\n", path, err)
			return exitFailure
		}
		st := in.Stats()
		log.Infof("tasks=%d handles=%d/%d fast=%d general=%d", st.Tasks, st.Acquired, st.Released, st.Fast, st.General)
	}
	return exitOK
}

// fileOf returns w as a file when it is one.
func fileOf(w io.Writer) *os.File {
	f, _ := w.(*os.File)
	return f
}
