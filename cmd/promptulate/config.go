package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML configuration for the CLI: where the
// OpenAI-compatible endpoint lives and which keys to seed the pool with.
type fileConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Keys    []struct {
		Secret string `yaml:"secret"`
		Model  string `yaml:"model"`
	} `yaml:"keys"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
