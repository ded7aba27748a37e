package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestMemoryModeSkipsBackingServices(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "memory"
	cfg.Postgres = PostgresConfig{}
	cfg.Redis = RedisConfig{}
	cfg.S3 = S3Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory mode must not require postgres/redis/s3: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Server.Port = 0
	cfg.Market.JournalBuffer = 0
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "port must be", "journal_buffer", "telegram"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "memory"
log_level = "debug"

[server]
port = 9100

[market]
expiry_interval = "30s"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "memory" {
		t.Errorf("Mode = %q, want memory", cfg.Mode)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Market.ExpiryInterval.Duration != 30*time.Second {
		t.Errorf("ExpiryInterval = %v, want 30s", cfg.Market.ExpiryInterval.Duration)
	}
	// Untouched fields keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Redis.Addr)
	}
}

func TestEnvOverridesWinOverTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 9100\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MARKETD_SERVER_PORT", "9200")
	t.Setenv("MARKETD_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("MARKETD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MARKETD_MARKET_EXPIRY_INTERVAL", "5m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("Port = %d, want env override 9200", cfg.Server.Port)
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Errorf("Postgres.Password = %q, want env override", cfg.Postgres.Password)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
	if cfg.Market.ExpiryInterval.Duration != 5*time.Minute {
		t.Errorf("ExpiryInterval = %v, want 5m", cfg.Market.ExpiryInterval.Duration)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Server.AdminToken = "secret-token"
	cfg.Postgres.Password = "pgpass"
	cfg.Postgres.DSN = "postgres://u:p@host/db"
	cfg.Redis.Password = "redispass"
	cfg.S3.AccessKey = "AKIA"
	cfg.S3.SecretKey = "wJalr"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Notify.TelegramChatID = "42"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	red := RedactedConfig(&cfg)
	for name, got := range map[string]string{
		"AdminToken":        red.Server.AdminToken,
		"Postgres.Password": red.Postgres.Password,
		"Postgres.DSN":      red.Postgres.DSN,
		"Redis.Password":    red.Redis.Password,
		"S3.AccessKey":      red.S3.AccessKey,
		"S3.SecretKey":      red.S3.SecretKey,
		"TelegramToken":     red.Notify.TelegramToken,
		"DiscordWebhook":    red.Notify.DiscordWebhookURL,
	} {
		if got != "***" {
			t.Errorf("%s = %q, want redacted", name, got)
		}
	}
	// The original is untouched.
	if cfg.Postgres.Password != "pgpass" {
		t.Error("Redacted must not mutate the source config")
	}
}
