package runner

import (
	"context"
)

// DbtRunner invokes dbt through its own CLI entrypoint module rather than
// whatever `dbt` resolves to on PATH. This is the closest equivalent to
// calling dbt's embedded API: it pins the invocation to the interpreter's
// installed dbt-core and bypasses shell shims.
type DbtRunner struct{}

func (r *DbtRunner) Run(ctx context.Context, args []string, cfg Config) (*Result, error) {
	return execute(ctx, buildDbtCommand(args, cfg), cfg)
}

func buildDbtCommand(args []string, cfg Config) []string {
	// The entrypoint module does not want "dbt" as its first argument.
	if len(args) > 0 && args[0] == cfg.entrypoint() {
		args = args[1:]
	}
	return append([]string{"python3", "-m", "dbt.cli.main"}, args...)
}
