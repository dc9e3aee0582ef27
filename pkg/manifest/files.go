package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Project is the subset of dbt_project.yml the tool cares about.
type Project struct {
	Name    string `koanf:"name"`
	Profile string `koanf:"profile"`
	Version string `koanf:"version"`
}

// Output is one connection block under a profile's outputs.
type Output struct {
	Type     string `koanf:"type"`
	Project  string `koanf:"project"`
	Dataset  string `koanf:"dataset"`
	Location string `koanf:"location"`
	Schema   string `koanf:"schema"`
	Threads  int    `koanf:"threads"`
}

// Profile is one named entry in profiles.yml.
type Profile struct {
	Target  string            `koanf:"target"`
	Outputs map[string]Output `koanf:"outputs"`
}

// Profiles is the parsed profiles.yml document.
type Profiles map[string]Profile

// Output resolves the connection block for a profile and target. An empty
// target falls back to the profile's default target.
func (p Profiles) Output(profile, target string) (Output, error) {
	prof, ok := p[profile]
	if !ok {
		return Output{}, fmt.Errorf("profile %q not found in profiles.yml", profile)
	}
	if target == "" {
		target = prof.Target
	}
	out, ok := prof.Outputs[target]
	if !ok {
		return Output{}, fmt.Errorf("no output configuration for target %q in profile %q", target, profile)
	}
	return out, nil
}

func loadYAML(path string, out any) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := k.Unmarshal("", out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// LoadProject reads dbt_project.yml from the project directory.
func LoadProject(projectDir string) (*Project, error) {
	path := filepath.Join(projectDir, "dbt_project.yml")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("dbt_project.yml not found in %s", projectDir)
	}
	var p Project
	if err := loadYAML(path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfiles locates and parses profiles.yml. When profilesDir is set it
// is the only location consulted; otherwise the project directory is tried
// first, then ~/.dbt/.
func LoadProfiles(projectDir, profilesDir string) (Profiles, error) {
	if profilesDir != "" {
		path := filepath.Join(profilesDir, "profiles.yml")
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("profiles.yml not found in %s", profilesDir)
		}
		var p Profiles
		if err := loadYAML(path, &p); err != nil {
			return nil, err
		}
		return p, nil
	}

	candidates := []string{
		filepath.Join(projectDir, "profiles.yml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".dbt", "profiles.yml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var p Profiles
		if err := loadYAML(path, &p); err != nil {
			return nil, err
		}
		return p, nil
	}

	return nil, fmt.Errorf("profiles.yml not found in the specified profiles directory, project directory, or ~/.dbt/")
}
