package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
cgate:
  host: "cgate.local"
  project: "HOME"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "cgateweb-test"
  qos: 1
  retain_reads: true
bridge:
  message_interval_ms: 100
  getall_on_start: true
  getall_netapp: "254/56"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CGate.Host != "cgate.local" {
		t.Errorf("CGate.Host = %q, want %q", cfg.CGate.Host, "cgate.local")
	}
	if cfg.CGate.Project != "HOME" {
		t.Errorf("CGate.Project = %q, want %q", cfg.CGate.Project, "HOME")
	}
	if cfg.CGate.CommandPort != 20023 {
		t.Errorf("CGate.CommandPort = %d, want default 20023", cfg.CGate.CommandPort)
	}
	if cfg.CGate.EventPort != 20025 {
		t.Errorf("CGate.EventPort = %d, want default 20025", cfg.CGate.EventPort)
	}
	if !cfg.MQTT.RetainReads {
		t.Error("MQTT.RetainReads = false, want true")
	}
	if got := cfg.MessageInterval(); got != 100*time.Millisecond {
		t.Errorf("MessageInterval() = %v, want 100ms", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
cgate:
  host: "localhost"
  project: "HOME"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CGate.Connection.PoolSize != 3 {
		t.Errorf("PoolSize = %d, want default 3", cfg.CGate.Connection.PoolSize)
	}
	if cfg.Bridge.MessageIntervalMs != 200 {
		t.Errorf("MessageIntervalMs = %d, want default 200", cfg.Bridge.MessageIntervalMs)
	}
	if cfg.Discovery.Prefix != "homeassistant" {
		t.Errorf("Discovery.Prefix = %q, want default %q", cfg.Discovery.Prefix, "homeassistant")
	}
	if got := cfg.HealthCheckInterval(); got != 30*time.Second {
		t.Errorf("HealthCheckInterval() = %v, want 30s", got)
	}
	if got := cfg.KeepAliveInterval(); got != 60*time.Second {
		t.Errorf("KeepAliveInterval() = %v, want 60s", got)
	}
	if got := cfg.CommandAddr(); got != "localhost:20023" {
		t.Errorf("CommandAddr() = %q, want localhost:20023", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
cgate:
  host: "file-host"
  project: "HOME"
`
	t.Setenv("CGATEWEB_CGATE_HOST", "env-host")
	t.Setenv("CGATEWEB_MQTT_PASSWORD", "secret")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CGate.Host != "env-host" {
		t.Errorf("CGate.Host = %q, want env override %q", cfg.CGate.Host, "env-host")
	}
	if cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("MQTT.Auth.Password = %q, want env override", cfg.MQTT.Auth.Password)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults with project",
			mutate: func(c *Config) { c.CGate.Project = "HOME" },
		},
		{
			name:    "missing project",
			mutate:  func(c *Config) {},
			wantErr: "cgate.project is required",
		},
		{
			name: "pool size below minimum",
			mutate: func(c *Config) {
				c.CGate.Project = "HOME"
				c.CGate.Connection.PoolSize = 0
			},
			wantErr: "pool_size",
		},
		{
			name: "health check interval below minimum",
			mutate: func(c *Config) {
				c.CGate.Project = "HOME"
				c.CGate.Connection.HealthCheckIntervalMs = 1000
			},
			wantErr: "health_check_interval_ms",
		},
		{
			name: "keep alive interval below minimum",
			mutate: func(c *Config) {
				c.CGate.Project = "HOME"
				c.CGate.Connection.KeepAliveIntervalMs = 5000
			},
			wantErr: "keep_alive_interval_ms",
		},
		{
			name: "message interval too small",
			mutate: func(c *Config) {
				c.CGate.Project = "HOME"
				c.Bridge.MessageIntervalMs = 5
			},
			wantErr: "message_interval_ms",
		},
		{
			name: "message interval too large",
			mutate: func(c *Config) {
				c.CGate.Project = "HOME"
				c.Bridge.MessageIntervalMs = 20000
			},
			wantErr: "message_interval_ms",
		},
		{
			name: "invalid qos",
			mutate: func(c *Config) {
				c.CGate.Project = "HOME"
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name: "malformed getall netapp",
			mutate: func(c *Config) {
				c.CGate.Project = "HOME"
				c.Bridge.GetAllNetApp = "254/56/4"
			},
			wantErr: "getall_netapp",
		},
		{
			name: "discovery enabled without networks",
			mutate: func(c *Config) {
				c.CGate.Project = "HOME"
				c.Discovery.Enabled = true
			},
			wantErr: "discovery.networks",
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.CGate.Project = "HOME"
				c.InfluxDB.Enabled = true
			},
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
