package runner

import (
	"context"
	"fmt"
)

// BashRunner executes dbt through a custom executable or wrapper script,
// for environments where dbt is shipped behind a shim (e.g. bin/dbt).
// Paths are passed through untouched; the script owns any translation.
type BashRunner struct{}

func (r *BashRunner) Run(ctx context.Context, args []string, cfg Config) (*Result, error) {
	if cfg.ShellPath == "" {
		return nil, fmt.Errorf("bash runner requires a shell path")
	}
	return execute(ctx, buildBashCommand(args, cfg), cfg)
}

func buildBashCommand(args []string, cfg Config) []string {
	argv := []string{cfg.ShellPath}
	// Drop a leading entrypoint token; the shell path replaces it.
	if len(args) > 0 && args[0] == cfg.entrypoint() {
		args = args[1:]
	}
	return append(argv, args...)
}
