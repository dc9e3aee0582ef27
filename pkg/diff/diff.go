// Package diff determines which dbt resources changed relative to a
// reference manifest by asking dbt itself through a runner backend.
package diff

import (
	"context"
	"strings"

	"github.com/datablock-dev/dbt-ci/pkg/logging"
	"github.com/datablock-dev/dbt-ci/pkg/runner"
)

// DefaultSelector selects modified resources and everything downstream
// of them.
const DefaultSelector = "state:modified+"

// Modified runs a state selector query through the given runner and
// returns the names of the current project's resources it matched.
// Returns nil (with a diagnostic) when nothing matched, and nil on a
// dry run.
func Modified(ctx context.Context, r runner.Runner, cfg runner.Config, project, selector string) ([]string, error) {
	if selector == "" {
		selector = DefaultSelector
	}

	res, err := r.Run(ctx, ListCommand(cfg, selector), cfg)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	names := FilterProjectNodes(res.Stdout, project)
	if len(names) == 0 {
		logging.Info("no modified resources detected", "project", project, "selector", selector)
		return nil, nil
	}
	return names, nil
}

// ListCommand builds the dbt ls invocation for a selector under the
// runner configuration's project, state and profile settings.
func ListCommand(cfg runner.Config, selector string) []string {
	args := []string{"ls", "--select", selector}
	if cfg.StateDir != "" {
		args = append(args, "--state", cfg.StateDir)
	}
	if cfg.ProjectDir != "" {
		args = append(args, "--project-dir", cfg.ProjectDir)
	}
	if cfg.ProfilesDir != "" {
		args = append(args, "--profiles-dir", cfg.ProfilesDir)
	}
	if cfg.Target != "" {
		args = append(args, "--target", cfg.Target)
	}
	if cfg.Vars != "" {
		args = append(args, "--vars", cfg.Vars)
	}
	return args
}

// FilterProjectNodes keeps the stdout lines that are fully-qualified
// resource identifiers of the given project and reduces each to its final
// dot segment, de-duplicated in first-seen order. dbt ls mixes log lines
// into stdout; the prefix filter drops those too.
func FilterProjectNodes(stdout, project string) []string {
	prefix := project + "."
	seen := make(map[string]struct{})
	var names []string

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, prefix) {
			continue
		}
		segments := strings.Split(line, ".")
		name := segments[len(segments)-1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
