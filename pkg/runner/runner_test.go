package runner

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestForKind(t *testing.T) {
	for _, kind := range []Kind{"", KindLocal, KindDocker, KindBash, KindDbt} {
		got, err := ForKind(kind)
		if err != nil {
			t.Errorf("ForKind(%q) error: %v", kind, err)
			continue
		}
		if got == nil {
			t.Errorf("ForKind(%q) = nil", kind)
		}
	}

	if _, err := ForKind("kubernetes"); err == nil {
		t.Fatal("expected an error for an unknown runner kind")
	} else if !strings.Contains(err.Error(), "unsupported runner") {
		t.Errorf("error = %v", err)
	}
}

func TestEntrypoint(t *testing.T) {
	tests := []struct {
		configured string
		want       string
	}{
		{"", "dbt"},
		{"-", ""},
		{"bin/dbt", "bin/dbt"},
	}
	for _, tt := range tests {
		cfg := Config{Entrypoint: tt.configured}
		if got := cfg.entrypoint(); got != tt.want {
			t.Errorf("entrypoint(%q) = %q, want %q", tt.configured, got, tt.want)
		}
	}
}

func TestBuildLocalCommand(t *testing.T) {
	argv := buildLocalCommand([]string{"ls", "--select", "state:modified+", "--state", "prod-artifacts"}, Config{})

	if argv[0] != "dbt" {
		t.Errorf("argv[0] = %q, want dbt", argv[0])
	}
	i := slices.Index(argv, "--state")
	if i < 0 || i+1 >= len(argv) {
		t.Fatalf("--state missing from %v", argv)
	}
	if !filepath.IsAbs(argv[i+1]) {
		t.Errorf("state path %q not absolutized", argv[i+1])
	}
	if !strings.HasSuffix(argv[i+1], "prod-artifacts") {
		t.Errorf("state path %q lost its last segment", argv[i+1])
	}
}

func TestBuildLocalCommandLeavesNonPathArgs(t *testing.T) {
	argv := buildLocalCommand([]string{"ls", "--select", "state:modified+"}, Config{})
	want := []string{"dbt", "ls", "--select", "state:modified+"}
	if !slices.Equal(argv, want) {
		t.Errorf("argv = %v, want %v", argv, want)
	}
}

func TestBuildLocalCommandDisabledEntrypoint(t *testing.T) {
	argv := buildLocalCommand([]string{"ls"}, Config{Entrypoint: "-"})
	if !slices.Equal(argv, []string{"ls"}) {
		t.Errorf("argv = %v, want [ls]", argv)
	}
}

func TestBuildDockerCommand(t *testing.T) {
	cfg := Config{
		ProjectDir:  "/work/proj",
		ProfilesDir: "/work/profiles",
		StateDir:    "/work/state",
		Docker:      DockerOptions{Image: "dbt:test", Platform: "linux/amd64", Network: "host"},
	}
	argv := buildDockerCommand([]string{"ls", "--state", "/work/state", "--project-dir", "/work/proj"}, cfg)

	joined := strings.Join(argv, " ")
	for _, want := range []string{
		"docker run",
		"--platform linux/amd64",
		"--network host",
		"-v /work/proj:" + containerProjectDir,
		"-v /work/state:" + containerStateDir,
		"-v /work/profiles:" + containerProfilesDir,
		"-e DBT_PROFILES_DIR=" + containerProfilesDir,
		"dbt:test ls",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("command %q missing %q", joined, want)
		}
	}

	// Host paths in the dbt args are rewritten to the mount points.
	tail := argv[slices.Index(argv, "dbt:test")+1:]
	want := []string{"ls", "--state", containerStateDir, "--project-dir", containerProjectDir}
	if !slices.Equal(tail, want) {
		t.Errorf("dbt args = %v, want %v", tail, want)
	}
}

func TestBuildDockerCommandDefaultImage(t *testing.T) {
	argv := buildDockerCommand([]string{"ls"}, Config{})
	if !slices.Contains(argv, DefaultDockerImage) {
		t.Errorf("command %v missing default image", argv)
	}
}

func TestBuildDockerCommandExtras(t *testing.T) {
	cfg := Config{
		Docker: DockerOptions{
			Volumes:   []string{"/data:/data"},
			Env:       []string{"DBT_ENV=ci"},
			ExtraArgs: "--rm --network host",
		},
	}
	joined := strings.Join(buildDockerCommand([]string{"ls"}, cfg), " ")
	for _, want := range []string{"-v /data:/data", "-e DBT_ENV=ci", "--rm", "--network host"} {
		if !strings.Contains(joined, want) {
			t.Errorf("command %q missing %q", joined, want)
		}
	}
}

func TestBuildBashCommand(t *testing.T) {
	cfg := Config{ShellPath: "/opt/bin/dbt"}
	argv := buildBashCommand([]string{"dbt", "ls", "--select", "state:modified+"}, cfg)
	want := []string{"/opt/bin/dbt", "ls", "--select", "state:modified+"}
	if !slices.Equal(argv, want) {
		t.Errorf("argv = %v, want %v", argv, want)
	}
}

func TestBashRunnerRequiresShellPath(t *testing.T) {
	r := &BashRunner{}
	if _, err := r.Run(context.Background(), []string{"ls"}, Config{}); err == nil {
		t.Fatal("expected an error without a shell path")
	}
}

func TestBuildDbtCommand(t *testing.T) {
	argv := buildDbtCommand([]string{"dbt", "ls"}, Config{})
	want := []string{"python3", "-m", "dbt.cli.main", "ls"}
	if !slices.Equal(argv, want) {
		t.Errorf("argv = %v, want %v", argv, want)
	}
}

func TestDryRunReturnsNothing(t *testing.T) {
	r := &LocalRunner{}
	res, err := r.Run(context.Background(), []string{"ls"}, Config{DryRun: true, Quiet: true})
	if err != nil {
		t.Fatalf("dry run error: %v", err)
	}
	if res != nil {
		t.Errorf("dry run result = %+v, want nil", res)
	}
}

func TestExecuteNonzeroExit(t *testing.T) {
	res, err := execute(context.Background(), []string{"false"}, Config{Quiet: true})
	if res != nil {
		t.Errorf("result = %+v, want nil on failure", res)
	}
	if err == nil {
		t.Fatal("expected an ExitError")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %T, want *ExitError", err)
	}
	if len(exitErr.Args) == 0 || exitErr.Args[0] != "false" {
		t.Errorf("ExitError args = %v", exitErr.Args)
	}
}
