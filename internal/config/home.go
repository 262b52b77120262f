package config

import (
	"fmt"
	"os"
)

// HomeEnv overrides the project directory
const HomeEnv = "SEARCHFLOW_HOME"

// ProjectDir returns the directory that relative paths and the config file
// are resolved against.
// Priority order:
//  1. the explicit dir argument (from --project-dir)
//  2. SEARCHFLOW_HOME environment variable (if set)
//  3. current working directory
func ProjectDir(dir string) (string, error) {
	if dir != "" {
		return checkDir(dir)
	}
	if home := os.Getenv(HomeEnv); home != "" {
		return checkDir(home)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

func checkDir(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("project directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project directory %s is not a directory", dir)
	}
	return dir, nil
}

// Load reads the config of a project directory and resolves its relative
// paths against it
func Load(projectDir, configPath string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr != nil {
			return nil, fmt.Errorf("config file: %w", statErr)
		}
		cfg, err = LoadConfig(configPath)
	} else {
		cfg, err = LoadConfigFromDir(projectDir)
	}
	if err != nil {
		return nil, err
	}
	cfg.Resolve(projectDir)
	return cfg, nil
}
