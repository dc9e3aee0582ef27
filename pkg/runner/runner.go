// Package runner dispatches dbt command invocations across interchangeable
// execution backends: a local process, a docker container, a custom
// script/binary, or dbt's own CLI entrypoint module.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/datablock-dev/dbt-ci/pkg/logging"
)

// Kind selects the execution backend.
type Kind string

const (
	KindLocal  Kind = "local"
	KindDocker Kind = "docker"
	KindBash   Kind = "bash"
	KindDbt    Kind = "dbt"
)

// DockerOptions carries the docker-backend specific settings.
type DockerOptions struct {
	Image     string
	Platform  string
	Network   string
	ExtraArgs string
	Volumes   []string
	Env       []string
}

// Config is the bundle every backend receives: runner selection, the
// project/state/profiles directories the command references, and
// backend-specific settings.
type Config struct {
	Kind        Kind
	ProjectDir  string
	StateDir    string
	ProfilesDir string
	Target      string
	Vars        string

	// Entrypoint is the command prefix, "dbt" unless overridden.
	// "-" disables the prefix entirely.
	Entrypoint string

	// ShellPath is the custom dbt executable used by the bash backend.
	ShellPath string

	Docker DockerOptions

	DryRun bool
	Quiet  bool
}

func (c Config) entrypoint() string {
	switch c.Entrypoint {
	case "":
		return "dbt"
	case "-":
		return ""
	}
	return c.Entrypoint
}

// Result is the captured output of a completed invocation.
type Result struct {
	Args   []string
	Stdout string
	Stderr string
}

// ExitError is returned when the invoked process exits nonzero. The
// captured output rides along so callers can surface it.
type ExitError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q failed: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Runner executes one dbt command to completion.
type Runner interface {
	// Run executes the given dbt arguments under cfg. A dry run returns
	// (nil, nil) after logging the command line.
	Run(ctx context.Context, args []string, cfg Config) (*Result, error)
}

// Dispatch routes the command to the backend named by cfg.Kind. An
// unknown kind is an error; the caller treats it as fatal.
func Dispatch(ctx context.Context, args []string, cfg Config) (*Result, error) {
	r, err := ForKind(cfg.Kind)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, args, cfg)
}

// ForKind returns the backend for a runner kind. An empty kind defaults
// to local execution.
func ForKind(kind Kind) (Runner, error) {
	switch kind {
	case "", KindLocal:
		return &LocalRunner{}, nil
	case KindDocker:
		return &DockerRunner{}, nil
	case KindBash:
		return &BashRunner{}, nil
	case KindDbt:
		return &DbtRunner{}, nil
	}
	return nil, fmt.Errorf("unsupported runner: %s", kind)
}

// execute runs argv as a subprocess, enforcing the shared dry-run,
// logging and error-capture behavior all backends follow.
func execute(ctx context.Context, argv []string, cfg Config) (*Result, error) {
	if !cfg.Quiet {
		logging.Info("running command", "cmd", strings.Join(argv, " "))
	}
	if cfg.DryRun {
		logging.Info("dry run: command would be executed", "cmd", strings.Join(argv, " "))
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ExitError{
			Args:   argv,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	if !cfg.Quiet && stdout.Len() > 0 {
		fmt.Print(stdout.String())
	}

	return &Result{
		Args:   argv,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}, nil
}
