package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceSpec is one configured data source in the sources manifest.
type SourceSpec struct {
	ID     string           `yaml:"id"`
	Name   string           `yaml:"name"`
	Type   string           `yaml:"type"`
	Config DataSourceConfig `yaml:"config"`
}

// Manifest is the top-level sources file loaded by the CLI.
type Manifest struct {
	Sources []SourceSpec `yaml:"sources"`
}

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Substitute environment variables
	content := string(data)
	content = substituteEnvVars(content)

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// LoadManifest loads and validates the sources manifest. Every source config
// is validated up front so a bad entry fails the whole load, not a later sync.
func LoadManifest(filePath string) (*Manifest, error) {
	var m Manifest
	if err := Load(filePath, &m); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(m.Sources))
	for i := range m.Sources {
		spec := &m.Sources[i]
		if spec.ID == "" {
			return nil, fmt.Errorf("source %d: id is required", i)
		}
		if _, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("source %q: duplicate id", spec.ID)
		}
		seen[spec.ID] = struct{}{}

		if err := spec.Config.Validate(); err != nil {
			return nil, fmt.Errorf("source %q: %w", spec.ID, err)
		}
	}

	return &m, nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
