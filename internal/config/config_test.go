// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	contents := "db_path: /tmp/chat.db\nhome: /tmp/home\nlog_level: debug\n"
	if err := os.WriteFile(file, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/chat.db" || cfg.Home != "/tmp/home" || cfg.LogLevel != "debug" {
		t.Errorf("Load = %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("IMESSAGE_HOME", "/env/home")
	t.Setenv("IMESSAGE_DB", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Home != "/env/home" {
		t.Errorf("Home = %q, want /env/home", cfg.Home)
	}
	// An empty env value still overrides, then the default applies.
	if want := DefaultDBPath("/env/home"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("IMESSAGE_TEST_KEY", "set")
	if got := GetEnv("IMESSAGE_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("GetEnv = %q, want set", got)
	}
	if got := GetEnv("IMESSAGE_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetEnv = %q, want fallback", got)
	}
}
