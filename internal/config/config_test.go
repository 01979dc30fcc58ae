package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, DataDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func clearEnv(t *testing.T) {
	t.Setenv("MINIDRIVE_LISTEN", "")
	t.Setenv("MINIDRIVE_WS_LISTEN", "")
	t.Setenv("MINIDRIVE_STORAGE_BACKEND", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Server.ReapInterval.Duration != 60*time.Second {
		t.Errorf("reap_interval = %s", cfg.Server.ReapInterval)
	}
	if cfg.Server.MaxPayload != 16*1024*1024 {
		t.Errorf("max_payload = %d", cfg.Server.MaxPayload)
	}
	if cfg.Storage.Backend != BackendJSON {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if !cfg.Sandbox.ResolveSymlinks || cfg.Sandbox.Landlock {
		t.Errorf("sandbox = %+v", cfg.Sandbox)
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeConfig(t, root, `
[server]
listen = "127.0.0.1:7000"
ws_listen = "127.0.0.1:7001"
reap_interval = "5s"

[storage]
backend = "sqlite"

[auth]
argon2_time = 1
argon2_memory_kib = 64
argon2_threads = 1

[sandbox]
resolve_symlinks = false
`)
	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:7000" || cfg.Server.WSListen != "127.0.0.1:7001" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.ReapInterval.Duration != 5*time.Second {
		t.Errorf("reap_interval = %s", cfg.Server.ReapInterval)
	}
	// Unset keys keep their defaults.
	if cfg.Server.MaxPayload != 16*1024*1024 {
		t.Errorf("max_payload = %d", cfg.Server.MaxPayload)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.Auth.Argon2MemoryKiB != 64 || cfg.Auth.Argon2Threads != 1 {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Sandbox.ResolveSymlinks {
		t.Error("resolve_symlinks should be false")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[server]\nlisten = \"127.0.0.1:7000\"\n")
	t.Setenv("MINIDRIVE_LISTEN", "127.0.0.1:8000")
	t.Setenv("MINIDRIVE_WS_LISTEN", "127.0.0.1:8001")
	t.Setenv("MINIDRIVE_STORAGE_BACKEND", "sqlite")

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:8000" || cfg.Server.WSListen != "127.0.0.1:8001" || cfg.Storage.Backend != "sqlite" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"syntax":       "[server\n",
		"backend":      "[storage]\nbackend = \"redis\"\n",
		"reap":         "[server]\nreap_interval = \"0s\"\n",
		"bad duration": "[server]\nreap_interval = \"soon\"\n",
		"memory":       "[auth]\nargon2_memory_kib = 8\nargon2_threads = 4\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			writeConfig(t, root, content)
			if _, err := LoadConfig(root); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	cfg := Default()
	cfg.Server.ReapInterval = Duration{90 * time.Second}
	cfg.Storage.Backend = BackendSQLite
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(Path(root))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `reap_interval = "1m30s"`) {
		t.Fatalf("config.toml = %s", data)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Server.ReapInterval.Duration != 90*time.Second || loaded.Storage.Backend != BackendSQLite {
		t.Fatalf("loaded = %+v", loaded)
	}
}
