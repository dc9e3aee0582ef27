package runner

import (
	"context"
	"strings"
)

// Container mount points for the translated host directories.
const (
	containerProjectDir  = "/usr/app"
	containerProfilesDir = "/root/.dbt"
	containerStateDir    = "/state"
)

// DefaultDockerImage is used when no image is configured.
const DefaultDockerImage = "ghcr.io/dbt-labs/dbt-core:latest"

// DockerRunner executes dbt inside a docker container, mounting the
// project, profiles and state directories and rewriting any host paths in
// the dbt arguments to their in-container equivalents.
type DockerRunner struct{}

func (r *DockerRunner) Run(ctx context.Context, args []string, cfg Config) (*Result, error) {
	return execute(ctx, buildDockerCommand(args, cfg), cfg)
}

func buildDockerCommand(args []string, cfg Config) []string {
	projectDir := absolutize(cfg.ProjectDir)
	profilesDir := absolutize(cfg.ProfilesDir)
	stateDir := absolutize(cfg.StateDir)

	argv := []string{"docker", "run"}

	if cfg.Docker.Platform != "" {
		argv = append(argv, "--platform", cfg.Docker.Platform)
	}
	if cfg.Docker.Network != "" {
		argv = append(argv, "--network", cfg.Docker.Network)
	}

	if projectDir != "" {
		argv = append(argv, "-v", projectDir+":"+containerProjectDir)
	}
	if stateDir != "" {
		argv = append(argv, "-v", stateDir+":"+containerStateDir)
	}
	if profilesDir != "" {
		argv = append(argv, "-v", profilesDir+":"+containerProfilesDir)
		argv = append(argv, "-e", "DBT_PROFILES_DIR="+containerProfilesDir)
	}

	for _, volume := range cfg.Docker.Volumes {
		argv = append(argv, "-v", volume)
	}
	for _, env := range cfg.Docker.Env {
		argv = append(argv, "-e", env)
	}
	if cfg.Docker.ExtraArgs != "" {
		argv = append(argv, strings.Fields(cfg.Docker.ExtraArgs)...)
	}

	image := cfg.Docker.Image
	if image == "" {
		image = DefaultDockerImage
	}
	argv = append(argv, image)

	// The image's own entrypoint is dbt; only the dbt arguments follow,
	// with host paths swapped for their mount points.
	for _, arg := range args {
		switch absolutize(arg) {
		case projectDir:
			if projectDir != "" {
				argv = append(argv, containerProjectDir)
				continue
			}
		case stateDir:
			if stateDir != "" {
				argv = append(argv, containerStateDir)
				continue
			}
		case profilesDir:
			if profilesDir != "" {
				argv = append(argv, containerProfilesDir)
				continue
			}
		}
		argv = append(argv, arg)
	}

	return argv
}
