// Package sandbox implements the Sandboxed Runner: compiling a submission,
// running it once per case under time/memory limits, and comparing its
// output against the expected answer.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"

	"oj/internal/model"
)

// CompileOutcome is the result of Runner.Compile.
type CompileOutcome struct {
	Success     bool
	ExecPath    string
	CompilerLog string
}

// ExitKind classifies how a run ended.
type ExitKind int

const (
	ExitOK ExitKind = iota
	ExitNonzero
	ExitSignal
	ExitTimeout
)

// RunOutcome is the result of Runner.Run.
type RunOutcome struct {
	Exit           ExitKind
	ExitCode       int
	Signal         string
	StdoutPath     string
	WallTimeUs     uint64
	PeakMemoryBytes uint64
}

// Runner compiles and executes submissions in a scratch directory that is
// always cleaned up, regardless of the exit path.
type Runner struct {
	// WorkRoot is the parent of every per-job scratch directory.
	WorkRoot string
}

func NewRunner(workRoot string) *Runner {
	return &Runner{WorkRoot: workRoot}
}

// ParseCompileCommand splits a single command-line string into argv,
// honoring quoting. Nothing in this repository calls it: languages supply
// compile_argv as an array, and imported problem packages name no compiler.
func ParseCompileCommand(cmd string) ([]string, error) {
	return shlex.Split(cmd)
}

// renderArgv substitutes %INPUT% and %OUTPUT% placeholders into each argv
// element of a language's compile_argv.
func renderArgv(argv []string, sourcePath, outputPath string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		a = strings.ReplaceAll(a, "%INPUT%", sourcePath)
		a = strings.ReplaceAll(a, "%OUTPUT%", outputPath)
		out[i] = a
	}
	return out
}

// Compile writes source into a fresh scratch directory under lang's source
// file name, renders compile_argv, and runs the compiler synchronously.
// The scratch directory (and thus the produced executable) is returned to
// the caller's responsibility to remove via Cleanup once every case has run.
func (r *Runner) Compile(ctx context.Context, lang model.Language, source string, timeLimit time.Duration) (CompileOutcome, string, error) {
	dir, err := os.MkdirTemp(r.WorkRoot, "compile-*")
	if err != nil {
		return CompileOutcome{}, "", fmt.Errorf("creating scratch dir: %w", err)
	}

	sourcePath := filepath.Join(dir, lang.SourceFileName)
	if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
		os.RemoveAll(dir)
		return CompileOutcome{}, "", fmt.Errorf("writing source: %w", err)
	}

	outputPath := filepath.Join(dir, "a.out")
	argv := renderArgv(lang.CompileArgv, sourcePath, outputPath)
	if len(argv) == 0 {
		os.RemoveAll(dir)
		return CompileOutcome{}, "", fmt.Errorf("language %q has empty compile_argv", lang.Name)
	}

	cctx := ctx
	var cancel context.CancelFunc
	if timeLimit > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeLimit)
		defer cancel()
	}

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	runErr := cmd.Run()

	if runErr != nil {
		if _, isExit := runErr.(*exec.ExitError); isExit || cctx.Err() != nil {
			return CompileOutcome{Success: false, CompilerLog: buf.String()}, dir, nil
		}
		os.RemoveAll(dir)
		return CompileOutcome{}, "", fmt.Errorf("invoking compiler: %w", runErr)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return CompileOutcome{Success: false, CompilerLog: buf.String()}, dir, nil
	}
	return CompileOutcome{Success: true, ExecPath: outputPath, CompilerLog: buf.String()}, dir, nil
}

// Cleanup removes a scratch directory returned by Compile.
func (r *Runner) Cleanup(dir string) {
	if dir != "" {
		os.RemoveAll(dir)
	}
}
