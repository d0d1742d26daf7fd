package main_test

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build binary once for all tests
	tmpDir, err := os.MkdirTemp("", "forallc-e2e-*")
	if err != nil {
		panic(err)
	}

	binaryPath = filepath.Join(tmpDir, "forallc")
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = filepath.Join(getModuleRoot(), "cmd", "forallc")
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(tmpDir)
		panic(string(out) + ": " + err.Error())
	}

	code := m.Run()
	_ = os.RemoveAll(tmpDir)
	os.Exit(code)
}

func getModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			if _, err := os.Stat(filepath.Join(dir, "forall.go")); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("module root not found")
		}
		dir = parent
	}
}

// scenario is a txtar archive: the comment holds the flags, input.yaml the
// fixture, stdout the exact output, stderr lines that must appear in the
// error output and exit the exit code.
type scenario struct {
	args   []string
	files  map[string][]byte
	stdout string
	stderr []string
	exit   int
}

func loadScenario(t *testing.T, path string) scenario {
	t.Helper()
	ar, err := txtar.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	sc := scenario{
		args:  strings.Fields(string(ar.Comment)),
		files: make(map[string][]byte),
	}
	for _, f := range ar.Files {
		switch f.Name {
		case "stdout":
			sc.stdout = string(f.Data)
		case "stderr":
			for _, line := range strings.Split(strings.TrimSpace(string(f.Data)), "\n") {
				if line != "" {
					sc.stderr = append(sc.stderr, line)
				}
			}
		case "exit":
			sc.exit, err = strconv.Atoi(strings.TrimSpace(string(f.Data)))
			if err != nil {
				t.Fatalf("%s: exit: %v", path, err)
			}
		default:
			sc.files[f.Name] = f.Data
		}
	}
	return sc
}

func runBinary(t *testing.T, dir string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = dir
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
	default:
		t.Fatalf("running forallc: %v", err)
	}
	return outBuf.String(), errBuf.String(), code
}

func TestE2E_Scenarios(t *testing.T) {
	archives, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) == 0 {
		t.Fatal("no scenarios found")
	}

	for _, path := range archives {
		name := strings.TrimSuffix(filepath.Base(path), ".txtar")
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sc := loadScenario(t, path)
			dir := t.TempDir()
			for name, data := range sc.files {
				if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
					t.Fatal(err)
				}
			}

			stdout, stderr, code := runBinary(t, dir, append(sc.args, "input.yaml")...)
			if code != sc.exit {
				t.Errorf("exit code = %d, want %d\nstderr:\n%s", code, sc.exit, stderr)
			}
			if diff := cmp.Diff(sc.stdout, stdout); diff != "" {
				t.Errorf("stdout mismatch (-want +got):\n%s", diff)
			}
			for _, want := range sc.stderr {
				if !strings.Contains(stderr, want) {
					t.Errorf("expected %q in stderr, got:\n%s", want, stderr)
				}
			}
		})
	}
}

func TestE2E_Dump(t *testing.T) {
	sc := loadScenario(t, filepath.Join("testdata", "standalone.txtar"))
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "input.yaml"), sc.files["input.yaml"], 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runBinary(t, dir, "-dump", "input.yaml")
	if code != 0 {
		t.Fatalf("exit code = %d\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "forall") || !strings.Contains(stdout, "blocks") {
		t.Errorf("expected the lowered forall in the dump, got:\n%s", stdout)
	}
}

func TestE2E_HelpFlag(t *testing.T) {
	_, stderr, code := runBinary(t, t.TempDir(), "-help")
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}

	expectedFlags := []string{
		"-no-fast-followers",
		"-tasks",
		"-log-level",
		"-max-errors",
		"-color",
		"-entry-points",
		"-dump",
		"-run",
		"-stats",
	}
	for _, flag := range expectedFlags {
		if !strings.Contains(stderr, flag) {
			t.Errorf("expected flag %q in help output, got:\n%s", flag, stderr)
		}
	}
}

func TestE2E_NoArguments(t *testing.T) {
	_, stderr, code := runBinary(t, t.TempDir())
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr, "Usage: forallc") {
		t.Errorf("expected usage, got:\n%s", stderr)
	}
}

func TestE2E_InvalidFlag(t *testing.T) {
	_, _, code := runBinary(t, t.TempDir(), "-invalid-flag-xyz", "input.yaml")
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestE2E_MissingFixture(t *testing.T) {
	_, stderr, code := runBinary(t, t.TempDir(), "missing.yaml")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "missing.yaml") {
		t.Errorf("expected the file name in stderr, got:\n%s", stderr)
	}
}

func TestE2E_UnknownEntryPoint(t *testing.T) {
	sc := loadScenario(t, filepath.Join("testdata", "standalone.txtar"))
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "input.yaml"), sc.files["input.yaml"], 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, code := runBinary(t, dir, "-entry-points=no-such-op=f", "input.yaml")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, `unknown entry point "no-such-op"`) {
		t.Errorf("expected the entry-point error, got:\n%s", stderr)
	}
}
