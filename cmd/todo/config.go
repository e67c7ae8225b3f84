package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/sumire/todoshare/internal/session"
)

const (
	configFileName = "config.toml"
	defaultServer  = "http://localhost:8080"
)

// cliConfig is ~/.todoshare/config.toml.
type cliConfig struct {
	Server struct {
		URL string `toml:"url"`
	} `toml:"server"`
}

// resolveServer picks the server URL: the --server flag, then TODO_SERVER,
// then the config file, then the default.
func resolveServer(flag, homeDir string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("TODO_SERVER"); env != "" {
		return env, nil
	}

	path := filepath.Join(homeDir, session.Dir, configFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultServer, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read config: %w", err)
	}

	var cfg cliConfig
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Server.URL == "" {
		return defaultServer, nil
	}
	return cfg.Server.URL, nil
}
