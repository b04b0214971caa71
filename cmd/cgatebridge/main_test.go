package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("CGATEWEB_CONFIG")
	defer os.Setenv("CGATEWEB_CONFIG", originalEnv)

	os.Setenv("CGATEWEB_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingProject verifies run fails when the C-Gate project is unset.
func TestRun_MissingProject(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
cgate:
  host: "127.0.0.1"

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("CGATEWEB_CONFIG")
	defer os.Setenv("CGATEWEB_CONFIG", originalEnv)
	os.Setenv("CGATEWEB_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without cgate.project")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("CGATEWEB_CONFIG")
	defer os.Setenv("CGATEWEB_CONFIG", originalEnv)

	os.Unsetenv("CGATEWEB_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("CGATEWEB_CONFIG")
	defer os.Setenv("CGATEWEB_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("CGATEWEB_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestSplitNetApp(t *testing.T) {
	tests := []struct {
		in      string
		network string
		app     string
		ok      bool
	}{
		{"254/56", "254", "56", true},
		{"1/203", "1", "203", true},
		{"", "", "", false},
		{"254", "", "", false},
		{"254/", "", "", false},
		{"/56", "", "", false},
	}

	for _, tt := range tests {
		network, app, ok := splitNetApp(tt.in)
		if network != tt.network || app != tt.app || ok != tt.ok {
			t.Errorf("splitNetApp(%q) = %q, %q, %v; want %q, %q, %v",
				tt.in, network, app, ok, tt.network, tt.app, tt.ok)
		}
	}
}

func TestBoolMetric(t *testing.T) {
	if boolMetric(true) != 1 {
		t.Error("boolMetric(true) should be 1")
	}
	if boolMetric(false) != 0 {
		t.Error("boolMetric(false) should be 0")
	}
}
