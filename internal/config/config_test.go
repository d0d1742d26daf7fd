package config_test

import (
	"flag"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mpyw/forall/internal/config"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, name := range []string{
		config.EnvNoFastFollowers, config.EnvTasks, config.EnvLogLevel,
		config.EnvMaxErrors, config.EnvColor,
	} {
		t.Setenv(name, "")
	}

	if diff := cmp.Diff(config.Default(), config.FromEnv()); diff != "" {
		t.Errorf("FromEnv() mismatch (-want +got):\n%s", diff)
	}
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cfg := config.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	if err := fs.Parse([]string{"-no-fast-followers", "-tasks=0", "-color=rainbow"}); err != nil {
		t.Fatal(err)
	}
	cfg.Normalize()

	if !cfg.NoFastFollowers {
		t.Errorf("NoFastFollowers = false, want true")
	}
	if cfg.Tasks != 1 {
		t.Errorf("Tasks = %d, want 1 after Normalize", cfg.Tasks)
	}
	if cfg.Color != "auto" {
		t.Errorf("Color = %q, want %q", cfg.Color, "auto")
	}
}
