package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is a source declared in a YAML file. The file name is its name.
type Seed struct {
	Name     string `yaml:"-"`
	Type     string `yaml:"type"`
	URL      string `yaml:"url"`
	Schedule string `yaml:"schedule"`
	Enabled  *bool  `yaml:"enabled"`
}

func (s Seed) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load reads every *.yml file of the directory. A missing directory yields
// no seeds.
func (l *Loader) Load() ([]Seed, error) {
	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}

	seeds := make([]Seed, 0, len(files))
	for _, file := range files {
		seed, err := parseSeed(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
		slog.Debug("Seed loaded", "name", seed.Name, "type", seed.Type, "enabled", seed.IsEnabled())
		seeds = append(seeds, *seed)
	}
	return seeds, nil
}

func parseSeed(file string) (*Seed, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	seed.Name = strings.TrimSuffix(filepath.Base(file), ".yml")

	if seed.URL == "" {
		return nil, fmt.Errorf("missing required field: url")
	}
	if seed.Type == "" {
		seed.Type = "feed"
	}
	if _, err := ParseType(seed.Type); err != nil {
		return nil, err
	}
	return &seed, nil
}
