package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kolon.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"KOLON_PATH", "HOST", "PORT", "GRPC_PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg.IncludePaths, []string{"."}) {
		t.Errorf("got include paths %v", cfg.IncludePaths)
	}
	if cfg.Syntax.OpenTag != "<:" || cfg.Syntax.CloseTag != ":>" || cfg.Syntax.CodeLineDelimiter != ":" {
		t.Errorf("unexpected syntax %+v", cfg.Syntax)
	}
	if cfg.Addr() != "0.0.0.0:8787" {
		t.Errorf("got addr %q", cfg.Addr())
	}
}

func TestLoadFile(t *testing.T) {
	for _, key := range []string{"KOLON_PATH", "HOST", "PORT", "GRPC_PORT"} {
		t.Setenv(key, "")
	}

	path := writeConfig(t, `
include_paths:
  - templates
  - /abs/shared
syntax:
  open_tag: "[%"
  close_tag: "%]"
port: "9000"
preload: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{filepath.Join(filepath.Dir(path), "templates"), "/abs/shared"}
	if !reflect.DeepEqual(cfg.IncludePaths, want) {
		t.Errorf("got include paths %v, want %v", cfg.IncludePaths, want)
	}
	if cfg.Syntax.OpenTag != "[%" || cfg.Syntax.CloseTag != "%]" {
		t.Errorf("unexpected tags %+v", cfg.Syntax)
	}
	if cfg.Syntax.CodeLineDelimiter != ":" {
		t.Errorf("code line delimiter should keep its default, got %q", cfg.Syntax.CodeLineDelimiter)
	}
	if cfg.Port != "9000" || cfg.GRPCPort != "8788" || !cfg.Preload {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "port: \"9000\"\n")
	t.Setenv("PORT", "7000")
	t.Setenv("KOLON_PATH", "/a"+string(os.PathListSeparator)+"/b")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "7000" {
		t.Errorf("got port %q, want 7000", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.IncludePaths, []string{"/a", "/b"}) {
		t.Errorf("got include paths %v", cfg.IncludePaths)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "include_paths: [unclosed"},
		{"same tags", "syntax:\n  open_tag: \"%%\"\n  close_tag: \"%%\"\n"},
		{"empty include path", "include_paths: [\" \"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KOLON_PATH", "")
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
