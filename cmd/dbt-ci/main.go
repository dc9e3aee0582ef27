package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/datablock-dev/dbt-ci/pkg/config"
	"github.com/datablock-dev/dbt-ci/pkg/cycles"
	"github.com/datablock-dev/dbt-ci/pkg/diff"
	"github.com/datablock-dev/dbt-ci/pkg/lineage"
	"github.com/datablock-dev/dbt-ci/pkg/logging"
	"github.com/datablock-dev/dbt-ci/pkg/manifest"
	"github.com/datablock-dev/dbt-ci/pkg/notify"
	"github.com/datablock-dev/dbt-ci/pkg/output"
	"github.com/datablock-dev/dbt-ci/pkg/pool"
	"github.com/datablock-dev/dbt-ci/pkg/runner"
	"github.com/datablock-dev/dbt-ci/pkg/watcher"
	"github.com/datablock-dev/dbt-ci/pkg/web"
)

const version = "0.1.0"

func main() {
	f := pflag.NewFlagSet("dbt-ci", pflag.ExitOnError)

	f.String("reference-manifest-dir", "", "Path to the production/reference manifest.json directory (not the file itself)")
	f.String("project-dir", ".", "Path to the dbt project directory")
	f.String("profiles-dir", "", "Path to the directory containing profiles.yml (defaults: <project-dir>/profiles.yml then ~/.dbt/)")
	f.StringP("target", "t", "", "The dbt target to use (defaults to the target in profiles.yml)")
	f.String("vars", "", "A YAML string or a path to a YAML file with variables to pass to dbt")
	f.StringP("selector", "s", "state:modified+", "Space-separated dbt selectors to diff against the reference state")
	f.String("mode", "run", "dbt command to run over the modified resources (run, test, snapshot, seed)")
	f.StringP("runner", "r", "local", "Runner backend for dbt commands (local, docker, bash, dbt)")
	f.String("entrypoint", "", "Command prefix for dbt invocations (default dbt, \"-\" for none)")
	f.String("shell-path", "", "Path to a custom dbt executable (bash runner)")
	f.String("docker-image", "", "Docker image for the docker runner")
	f.String("docker-platform", "", "Platform for the docker image (e.g. linux/amd64)")
	f.String("docker-network", "", "Docker network mode")
	f.StringSlice("docker-volume", nil, "Additional docker volume mounts")
	f.StringSlice("docker-env", nil, "Environment variables passed to the container")
	f.String("output", "dependency_graph.json", "Path the lineage map JSON is written to (empty to skip)")
	f.String("slack-webhook", "", "Slack webhook URL for the CI report")
	f.Bool("serve", false, "Serve the lineage map over HTTP instead of exiting")
	f.Int("port", 8080, "Port for the lineage server")
	f.Bool("watch", false, "Rebuild the lineage map when the reference manifest changes (with --serve)")
	f.Int("threads", 4, "Worker threads for diffing multiple selectors")
	f.Bool("dry-run", false, "Print the dbt commands that would run without executing them")
	f.Bool("quiet", false, "Suppress subprocess output")
	f.String("log-level", "INFO", "Logging level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	f.String("log-format", "compact", "Log output format (compact, json)")
	showVersion := f.Bool("version", false, "Print the version and exit")

	_ = f.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println("dbt-ci " + version)
		return
	}

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Printf("An error occurred: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Printf("An error occurred: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.LogFormat == "json" {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}

	ctx := logging.WithRunID(context.Background(), uuid.New().String())

	ref, err := manifest.Load(cfg.ReferenceManifestDir)
	if err != nil {
		return err
	}

	graph, err := lineage.Build(ref)
	if err != nil {
		return err
	}
	logging.InfoContext(ctx, "lineage map built", "resources", graph.Len())

	for _, cycle := range cycles.FindResourceCycles(graph) {
		logging.Warn("circular dependency in manifest", "resources", strings.Join(cycle.IDs, " -> "))
	}

	if cfg.Output != "" {
		if err := graph.WriteJSON(cfg.Output); err != nil {
			return err
		}
		logging.InfoContext(ctx, "lineage map written", "path", cfg.Output)
	}

	project := projectName(cfg, ref)
	rcfg := runnerConfig(cfg)

	modified, err := diffSelectors(ctx, cfg, rcfg, project)
	if err != nil {
		return err
	}

	if !cfg.Quiet {
		output.PrintDiffReport(project, cfg.Selector, graph.Len(), modified)
	}

	if cfg.SlackWebhook != "" {
		if err := sendReport(ctx, cfg, project, modified); err != nil {
			logging.Warn("slack report not sent", "error", err)
		}
	}

	if cfg.Mode != "" && len(modified) > 0 && !cfg.Serve {
		if err := runMode(ctx, cfg, rcfg); err != nil {
			return err
		}
	}

	if cfg.Serve {
		return serve(ctx, cfg, graph, web.DiffResult{
			Project:  project,
			Selector: cfg.Selector,
			Modified: modified,
		})
	}
	return nil
}

// projectName resolves the name used to filter dbt ls output, preferring
// dbt_project.yml and falling back to the manifest metadata.
func projectName(cfg *config.Config, ref *manifest.Manifest) string {
	if proj, err := manifest.LoadProject(cfg.ProjectDir); err == nil && proj.Name != "" {
		return proj.Name
	}
	if name, ok := ref.Metadata["project_name"].(string); ok {
		return name
	}
	return ""
}

func runnerConfig(cfg *config.Config) runner.Config {
	return runner.Config{
		Kind:        runner.Kind(cfg.Runner),
		ProjectDir:  cfg.ProjectDir,
		StateDir:    cfg.ReferenceManifestDir,
		ProfilesDir: cfg.ProfilesDir,
		Target:      cfg.Target,
		Vars:        cfg.Vars,
		Entrypoint:  cfg.Entrypoint,
		ShellPath:   cfg.ShellPath,
		Docker: runner.DockerOptions{
			Image:    cfg.DockerImage,
			Platform: cfg.DockerPlatform,
			Network:  cfg.DockerNetwork,
			Volumes:  cfg.DockerVolumes,
			Env:      cfg.DockerEnv,
		},
		DryRun: cfg.DryRun,
		Quiet:  cfg.Quiet,
	}
}

// diffSelectors runs one state diff per selector, fanning out when more
// than one was given, and merges the results in selector order.
func diffSelectors(ctx context.Context, cfg *config.Config, rcfg runner.Config, project string) ([]string, error) {
	selectors := strings.Fields(cfg.Selector)
	if len(selectors) == 0 {
		selectors = []string{diff.DefaultSelector}
	}

	r, err := runner.ForKind(rcfg.Kind)
	if err != nil {
		return nil, err
	}

	if len(selectors) == 1 {
		return diff.Modified(ctx, r, rcfg, project, selectors[0])
	}

	tasks := make([]pool.Task, len(selectors))
	for i, sel := range selectors {
		tasks[i] = func() (any, error) {
			return diff.Modified(ctx, r, rcfg, project, sel)
		}
	}
	values, err := pool.RunFailFast(ctx, tasks, cfg.Threads)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []string
	for _, v := range values {
		names, _ := v.([]string)
		for _, name := range names {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			merged = append(merged, name)
		}
	}
	return merged, nil
}

// runMode executes the configured dbt command over the modified state.
func runMode(ctx context.Context, cfg *config.Config, rcfg runner.Config) error {
	args := []string{cfg.Mode, "--select", diff.DefaultSelector, "--state", rcfg.StateDir, "--project-dir", rcfg.ProjectDir}
	if rcfg.ProfilesDir != "" {
		args = append(args, "--profiles-dir", rcfg.ProfilesDir)
	}
	if rcfg.Target != "" {
		args = append(args, "--target", rcfg.Target)
	}
	if rcfg.Vars != "" {
		args = append(args, "--vars", rcfg.Vars)
	}

	_, err := runner.Dispatch(ctx, args, rcfg)
	return err
}

func sendReport(ctx context.Context, cfg *config.Config, project string, modified []string) error {
	client, err := notify.NewClient(cfg.SlackWebhook)
	if err != nil {
		return err
	}
	msg := notify.CIReport(modified, notify.ReportMeta{
		ProjectName: project,
		Branch:      os.Getenv("GITHUB_REF_NAME"),
		CommitSHA:   os.Getenv("GITHUB_SHA"),
	})
	return client.Send(ctx, msg)
}

// serve exposes the lineage map over HTTP, optionally rebuilding it when
// the reference manifest changes.
func serve(ctx context.Context, cfg *config.Config, graph *lineage.Graph, diffResult web.DiffResult) error {
	server := web.NewServer()
	server.SetGraph(graph)
	server.SetDiff(diffResult)

	if cfg.Watch {
		mw, err := watcher.NewManifestWatcher(cfg.ReferenceManifestDir)
		if err != nil {
			return err
		}
		if err := mw.Start(ctx); err != nil {
			return err
		}

		go func() {
			for range mw.Events() {
				ref, err := manifest.Load(cfg.ReferenceManifestDir)
				if err != nil {
					logging.Error("manifest reload failed", "error", err)
					continue
				}
				rebuilt, err := lineage.Build(ref)
				if err != nil {
					logging.Error("lineage rebuild failed", "error", err)
					continue
				}
				logging.Info("lineage map rebuilt", "resources", rebuilt.Len())
				server.SetGraph(rebuilt)
			}
		}()
	}

	return server.Start(cfg.Port)
}
