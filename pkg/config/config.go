package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for a dbt-ci invocation
type Config struct {
	ReferenceManifestDir string `koanf:"reference-manifest-dir"`
	ProjectDir           string `koanf:"project-dir"`
	ProfilesDir          string `koanf:"profiles-dir"`
	Target               string `koanf:"target"`
	Vars                 string `koanf:"vars"`
	Selector             string `koanf:"selector"`
	Mode                 string `koanf:"mode"`

	Runner         string   `koanf:"runner"`
	Entrypoint     string   `koanf:"entrypoint"`
	ShellPath      string   `koanf:"shell-path"`
	DockerImage    string   `koanf:"docker-image"`
	DockerPlatform string   `koanf:"docker-platform"`
	DockerNetwork  string   `koanf:"docker-network"`
	DockerVolumes  []string `koanf:"docker-volume"`
	DockerEnv      []string `koanf:"docker-env"`

	Output       string `koanf:"output"`
	SlackWebhook string `koanf:"slack-webhook"`

	Serve   bool `koanf:"serve"`
	Port    int  `koanf:"port"`
	Watch   bool `koanf:"watch"`
	Threads int  `koanf:"threads"`

	DryRun    bool   `koanf:"dry-run"`
	Quiet     bool   `koanf:"quiet"`
	LogLevel  string `koanf:"log-level"`
	LogFormat string `koanf:"log-format"`
}

var validRunners = map[string]bool{"local": true, "docker": true, "bash": true, "dbt": true}
var validModes = map[string]bool{"": true, "run": true, "test": true, "snapshot": true, "seed": true}

// Load loads configuration from defaults, config file, environment
// variables, and flags. Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"project-dir":  ".",
		"selector":     "state:modified+",
		"mode":         "run",
		"runner":       "local",
		"docker-image": "ghcr.io/dbt-labs/dbt-core:latest",
		"output":       "dependency_graph.json",
		"port":         8080,
		"threads":      4,
		"log-level":    "INFO",
		"log-format":   "compact",
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - dbt-ci.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider("dbt-ci.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: DBT_CI_ (e.g., DBT_CI_PROJECT_DIR=dbt)
	if err := k.Load(env.Provider("DBT_CI_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "DBT_CI_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ReferenceManifestDir == "" {
		return fmt.Errorf("a reference manifest directory is required (--reference-manifest-dir)")
	}
	if !validRunners[c.Runner] {
		return fmt.Errorf("unsupported runner: %s", c.Runner)
	}
	if !validModes[c.Mode] {
		return fmt.Errorf("unsupported mode: %s", c.Mode)
	}
	if c.Runner == "bash" && c.ShellPath == "" {
		return fmt.Errorf("the bash runner requires --shell-path")
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
