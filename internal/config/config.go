// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config resolves configuration for the imessage tools from an
// optional YAML file and the environment. Environment variables win over
// file values.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chatvault/imessage/internal/derrors"
)

// Config holds the settings the imessage tools consume.
type Config struct {
	// DBPath is the path to the Messages database.
	DBPath string `yaml:"db_path"`
	// Home is the directory against which '~' in attachment filenames is
	// expanded.
	Home string `yaml:"home"`
	// LogLevel is the minimum level to log (logrus level names).
	LogLevel string `yaml:"log_level"`
}

// DefaultDBPath returns the conventional location of chat.db under the
// given home directory.
func DefaultDBPath(home string) string {
	return filepath.Join(home, "Library", "Messages", "chat.db")
}

// Load reads configuration from file, if non-empty, then applies
// environment overrides and defaults.
func Load(file string) (_ *Config, err error) {
	defer derrors.Wrap(&err, "config.Load(%q)", file)

	var cfg Config
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.Home = GetEnv("IMESSAGE_HOME", cfg.Home)
	cfg.DBPath = GetEnv("IMESSAGE_DB", cfg.DBPath)
	cfg.LogLevel = GetEnv("IMESSAGE_LOG_LEVEL", cfg.LogLevel)

	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.Home = home
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath(cfg.Home)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return &cfg, nil
}

// GetEnv looks up the given key from the environment, returning its value
// if it exists, and otherwise returning the given fallback value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
