package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http.addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Bus.Driver != BusRedis {
		t.Errorf("bus.driver = %q", cfg.Bus.Driver)
	}
	if got := cfg.Redis.KeyPrefix(); got != "CLOUDEVENTS-BIN-CLOUDEVENTS-BIN" {
		t.Errorf("key prefix = %q", got)
	}
	if cfg.Feed.SendTimeout != 500*time.Millisecond {
		t.Errorf("feed.send_timeout = %v", cfg.Feed.SendTimeout)
	}
	if cfg.HTTP.ShutdownGrace != 5*time.Second {
		t.Errorf("http.shutdown_grace = %v", cfg.HTTP.ShutdownGrace)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CE_BIN_REDIS_PREFIX", "STAGING")
	t.Setenv("CE_BIN_BUS_DRIVER", "memory")
	t.Setenv("CE_BIN_FEED_SEND_TIMEOUT", "2s")

	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Redis.KeyPrefix() != "STAGING-CLOUDEVENTS-BIN" {
		t.Errorf("key prefix = %q", cfg.Redis.KeyPrefix())
	}
	if cfg.Bus.Driver != BusMemory {
		t.Errorf("bus.driver = %q", cfg.Bus.Driver)
	}
	if cfg.Feed.SendTimeout != 2*time.Second {
		t.Errorf("feed.send_timeout = %v", cfg.Feed.SendTimeout)
	}
}

func TestLoadConfig_FileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "http:\n  addr: \":9000\"\nbus:\n  driver: nats\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fs := NewFlagSet()
	if err := fs.Parse([]string{"--http.addr", ":9100"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadConfig(path, fs)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTP.Addr != ":9100" {
		t.Errorf("flag must win over file: http.addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Bus.Driver != BusNATS {
		t.Errorf("unset flag must not shadow file: bus.driver = %q", cfg.Bus.Driver)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("CE_BIN_BUS_DRIVER", "carrier-pigeon")
	t.Setenv("CE_BIN_WORKER_CONCURRENCY", "0")

	_, err := LoadConfig("", nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "bus.driver") || !strings.Contains(err.Error(), "worker.concurrency") {
		t.Errorf("error should list every problem, got %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestOnChange_ReportsLevelWithoutMutatingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	levels := make(chan string, 16)
	cfg.OnChange(func(_ fsnotify.Event, level string) {
		select {
		case levels <- level:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case level := <-levels:
			if level != "debug" {
				continue
			}
			if cfg.Log.Level != "info" {
				t.Fatalf("cfg.Log.Level = %q, reload must not mutate it", cfg.Log.Level)
			}
			return
		case <-timeout:
			t.Fatal("no reload observed")
		}
	}
}
