package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "stationd"
  username: "user"
  password: "pass"
  topic_prefix: "swaps"
  use_tls: false
storage:
  driver: "sqlite"
  path: "/tmp/stationd.db"
metrics:
  prometheus_enabled: true
  prometheus_addr: ":9200"
api:
  addr: ":8081"
logging:
  level: "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"mqtt.enabled", cfg.MQTT.Enabled, true},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.client_id", cfg.MQTT.ClientID, "stationd"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "swaps"},
		{"mqtt.use_tls", cfg.MQTT.UseTLS, false},
		{"storage.driver", cfg.Storage.Driver, "sqlite"},
		{"storage.path", cfg.Storage.Path, "/tmp/stationd.db"},
		{"metrics.prometheus_enabled", cfg.Metrics.PrometheusEnabled, true},
		{"metrics.prometheus_addr", cfg.Metrics.PrometheusAddr, ":9200"},
		{"api.addr", cfg.API.Addr, ":8081"},
		{"logging.level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", "storage:\n  driver: \"memory\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.API.Addr != ":8080" {
		t.Errorf("api addr default = %s", cfg.API.Addr)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level default = %s", cfg.Logging.Level)
	}
	if cfg.Metrics.PrometheusAddr != ":9105" {
		t.Errorf("prometheus addr default = %s", cfg.Metrics.PrometheusAddr)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("storage driver = %s", cfg.Storage.Driver)
	}
}

func TestLoad_SqlitePathDefault(t *testing.T) {
	path := writeConfig(t, "config.yaml", "storage:\n  driver: \"sqlite\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Storage.Path != "stationd.db" {
		t.Errorf("sqlite path default = %s", cfg.Storage.Path)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SW_API__ADDR", ":9999")
	t.Setenv("SW_LOGGING__LEVEL", "warn")
	path := writeConfig(t, "config.yaml", "api:\n  addr: \":8080\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.API.Addr != ":9999" {
		t.Errorf("env override lost: %s", cfg.API.Addr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env override lost: %s", cfg.Logging.Level)
	}
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"bad driver", "config.yaml", "storage:\n  driver: \"postgres\"\n"},
		{"bad level", "config.yaml", "logging:\n  level: \"verbose\"\n"},
		{"bad extension", "config.toml", "storage = \"memory\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.data)
			if _, err := Load(path); err == nil {
				t.Error("expected load to fail")
			}
		})
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"api": {"addr": ":7070"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.API.Addr != ":7070" {
		t.Errorf("json addr = %s", cfg.API.Addr)
	}
}
