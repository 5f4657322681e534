package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/taskflow.db")
	if cfg.Database.Path != "/tmp/taskflow.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Server.HTTPBind != "127.0.0.1:8080" || cfg.Server.APIEndpoint != "/api" {
		t.Fatalf("unexpected server defaults %#v", cfg.Server)
	}
	if cfg.Notify.RedisAddr != "" || cfg.Notify.Channel != "taskflow:board" {
		t.Fatalf("unexpected notify defaults %#v", cfg.Notify)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/taskflow.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/taskflow.db"

[server]
http_bind = "0.0.0.0:9090"

[auth]
jwt_secret = "s3cret"
issuer = "taskflow"

[notify]
redis_addr = "localhost:6379"
channel = "boards"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/taskflow.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Server.HTTPBind != "0.0.0.0:9090" || cfg.Server.APIEndpoint != "/api" {
		t.Fatalf("unexpected server config %#v", cfg.Server)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Auth.Issuer != "taskflow" {
		t.Fatalf("unexpected auth config %#v", cfg.Auth)
	}
	if cfg.Notify.RedisAddr != "localhost:6379" || cfg.Notify.Channel != "boards" {
		t.Fatalf("unexpected notify config %#v", cfg.Notify)
	}
	if cfg.LogLevel() != log.DebugLevel {
		t.Fatalf("unexpected log level %v", cfg.LogLevel())
	}
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("ValidateServe() error = %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bind":     "[server]\nhttp_bind = \"nope\"\n",
		"endpoint": "[server]\napi_endpoint = \"api\"\n",
		"redis":    "[notify]\nredis_addr = \"redis\"\n",
		"redis db": "[notify]\nredis_db = -1\n",
		"level":    "[logging]\nlevel = \"chatty\"\n",
		"toml":     "[database\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/taskflow.db")); err == nil {
				t.Fatal("expected Load() error")
			}
		})
	}
}

func TestValidateRequiresDatabasePath(t *testing.T) {
	cfg := Default("  ")
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "database path") {
		t.Fatalf("expected database path error, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvDBPath:    "/env/taskflow.db",
		EnvJWTSecret: " from-env ",
	}
	cfg := Default("/tmp/taskflow.db").ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if cfg.Database.Path != "/env/taskflow.db" || cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("unexpected env overlay %#v", cfg)
	}
	if err := Default("/tmp/taskflow.db").ValidateServe(); err == nil {
		t.Fatal("expected ValidateServe() error without secret")
	}
}

func TestEnsureConfigDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.toml")
	if err := EnsureConfigDir(path); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("expected config dir to exist: %v", err)
	}
}
