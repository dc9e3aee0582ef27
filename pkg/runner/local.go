package runner

import (
	"context"
	"path/filepath"
)

// pathFlags are dbt flags whose following argument is a filesystem path.
// The local backend absolutizes these so the command works regardless of
// the working directory dbt resolves paths against.
var pathFlags = map[string]bool{
	"--state":        true,
	"--project-dir":  true,
	"--profiles-dir": true,
	"--target-path":  true,
	"--log-path":     true,
}

// LocalRunner executes dbt directly as a local subprocess.
type LocalRunner struct{}

func (r *LocalRunner) Run(ctx context.Context, args []string, cfg Config) (*Result, error) {
	return execute(ctx, buildLocalCommand(args, cfg), cfg)
}

func buildLocalCommand(args []string, cfg Config) []string {
	var argv []string
	if ep := cfg.entrypoint(); ep != "" {
		argv = append(argv, ep)
	}
	argv = append(argv, args...)

	prev := ""
	for i, arg := range argv {
		if pathFlags[prev] {
			argv[i] = absolutize(arg)
		}
		prev = arg
	}
	return argv
}

func absolutize(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
