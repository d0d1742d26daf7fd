// Package config holds the settings shared by the pass, the evaluator and
// the command. Defaults come from the environment; flags override them.
package config

import (
	"flag"

	"github.com/xyproto/env/v2"
)

// Environment variables read by [FromEnv].
const (
	EnvNoFastFollowers = "FORALL_NO_FAST_FOLLOWERS"
	EnvTasks           = "FORALL_TASKS"
	EnvLogLevel        = "FORALL_LOG_LEVEL"
	EnvMaxErrors       = "FORALL_MAX_ERRORS"
	EnvColor           = "FORALL_COLOR"
)

// Config is the pass configuration.
type Config struct {
	// NoFastFollowers disables the fast-follower branch in leader loops.
	NoFastFollowers bool
	// Tasks bounds the number of tasks a parallel iterator splits into.
	Tasks int
	// LogLevel is a logging level name.
	LogLevel string
	// MaxErrors bounds the diagnostics the command prints.
	MaxErrors int
	// Color is "auto", "always" or "never".
	Color string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Tasks:     4,
		LogLevel:  "warn",
		MaxErrors: 20,
		Color:     "auto",
	}
}

// FromEnv returns the defaults overridden by the environment.
func FromEnv() Config {
	d := Default()
	return Config{
		NoFastFollowers: env.Bool(EnvNoFastFollowers),
		Tasks:           env.Int(EnvTasks, d.Tasks),
		LogLevel:        env.Str(EnvLogLevel, d.LogLevel),
		MaxErrors:       env.Int(EnvMaxErrors, d.MaxErrors),
		Color:           env.Str(EnvColor, d.Color),
	}
}

// RegisterFlags binds c to flags in fs, using the current values of c as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.NoFastFollowers, "no-fast-followers", c.NoFastFollowers,
		"do not generate the fast-follower branch in leader/follower loops")
	fs.IntVar(&c.Tasks, "tasks", c.Tasks,
		"number of tasks parallel iterators split into when executing")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel,
		"log level (error, warn, info, debug)")
	fs.IntVar(&c.MaxErrors, "max-errors", c.MaxErrors,
		"maximum number of diagnostics to print")
	fs.StringVar(&c.Color, "color", c.Color,
		"colorize diagnostics (auto, always, never)")
}

// Normalize clamps out-of-range values.
func (c *Config) Normalize() {
	if c.Tasks < 1 {
		c.Tasks = 1
	}
	if c.MaxErrors < 1 {
		c.MaxErrors = Default().MaxErrors
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		c.Color = "auto"
	}
}
