package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig describes one HTTP search engine in failover order.
type EngineConfig struct {
	Agent      string        `yaml:"agent"`
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxResults int           `yaml:"max_results"`
}

// EnginesYAML represents the structure of the engine catalog file.
type EnginesYAML struct {
	Engines []EngineConfig `yaml:"engines"`
}

// LoadEngines loads the ordered engine catalog from a YAML file.
func LoadEngines(filePath string) ([]EngineConfig, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadEngines: failed to get absolute path: %w", err)
	}

	// #nosec G304 -- Configuration files are expected to be safe
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadEngines: failed to read config file: %w", err)
	}

	var doc EnginesYAML
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("op=config.LoadEngines: failed to parse YAML: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Engines))
	out := make([]EngineConfig, 0, len(doc.Engines))
	for i, e := range doc.Engines {
		e.Agent = strings.TrimSpace(e.Agent)
		if e.Agent == "" || e.URL == "" {
			return nil, fmt.Errorf("op=config.LoadEngines: engine #%d needs agent and url", i)
		}
		if _, dup := seen[e.Agent]; dup {
			return nil, fmt.Errorf("op=config.LoadEngines: duplicate agent %q", e.Agent)
		}
		seen[e.Agent] = struct{}{}
		if e.Timeout <= 0 {
			e.Timeout = 30 * time.Second
		}
		if e.MaxResults <= 0 {
			e.MaxResults = 5
		}
		out = append(out, e)
	}
	return out, nil
}
