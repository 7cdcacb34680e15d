package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/butlerbot/relay/internal/biz/usecase"
)

// PromptsConfig contains prompt configuration loaded from YAML
type PromptsConfig struct {
	// SystemPrompt is the instruction template, supports {{bot_name}}, {{bot_id}}, {{no_reply}}
	SystemPrompt string `yaml:"system_prompt"`
}

// LoadPromptsConfig loads prompts configuration from a YAML file.
// An explicit path must exist; without one the default locations are tried
// and the built-in prompt is used when none is found.
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/butlerbot/prompts.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			break
		}
		if configPath != "" {
			return nil, &ConfigError{Field: "PROMPTS_CONFIG_PATH", Message: err.Error()}
		}
	}

	if data == nil {
		return DefaultPromptsConfig(), nil
	}

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse prompts.yaml: %w", err)
	}

	// Fill in defaults for empty values
	if config.SystemPrompt == "" {
		config.SystemPrompt = usecase.DefaultSystemPrompt
	}
	return &config, nil
}

// DefaultPromptsConfig returns the built-in prompts
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		SystemPrompt: usecase.DefaultSystemPrompt,
	}
}
