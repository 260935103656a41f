package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr() != "0.0.0.0:3000" {
		t.Fatalf("Addr() = %q, want 0.0.0.0:3000", cfg.Addr())
	}
	if cfg.Server.BaseURL != "http://localhost:3000" {
		t.Fatalf("Server.BaseURL = %q", cfg.Server.BaseURL)
	}
	if !cfg.UsesDefaultSecret() {
		t.Fatal("UsesDefaultSecret() = false, want true")
	}
	if cfg.Storage.Driver != StorageDriverFS {
		t.Fatalf("Storage.Driver = %q, want fs", cfg.Storage.Driver)
	}
	if len(cfg.Catalog.Sets) != 12 || cfg.Catalog.Sets[11] != "sm12" {
		t.Fatalf("Catalog.Sets = %v", cfg.Catalog.Sets)
	}
	if len(cfg.Profile.TrustedImageHosts) != 1 || cfg.Profile.TrustedImageHosts[0] != "images.pokemontcg.io" {
		t.Fatalf("Profile.TrustedImageHosts = %v", cfg.Profile.TrustedImageHosts)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("Server.ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
  base_url: https://decks.example.com/
  allowed_origins: ["https://app.example.com"]
database:
  path: /tmp/from-file.db
auth:
  token_secret: from-file
catalog:
  sets: [sm1, sm2]
`)
	t.Setenv("DECKS_AUTH_TOKEN_SECRET", "from-env")
	t.Setenv("DECKS_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("POKEMON_TCG_API_KEY", "shared-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Fatalf("Server.Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "https://decks.example.com" {
		t.Fatalf("Server.BaseURL = %q, want trailing slash trimmed", cfg.Server.BaseURL)
	}
	if cfg.Auth.TokenSecret != "from-env" {
		t.Fatalf("Auth.TokenSecret = %q, want from-env", cfg.Auth.TokenSecret)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Fatalf("Database.Path = %q, want /tmp/from-env.db", cfg.Database.Path)
	}
	if cfg.Catalog.APIKey != "shared-key" {
		t.Fatalf("Catalog.APIKey = %q, want shared-key", cfg.Catalog.APIKey)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Fatalf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if len(cfg.Catalog.Sets) != 2 {
		t.Fatalf("Catalog.Sets = %v, want [sm1 sm2]", cfg.Catalog.Sets)
	}
}

func TestPrefixedAPIKeyWins(t *testing.T) {
	t.Setenv("DECKS_CATALOG_API_KEY", "prefixed")
	t.Setenv("POKEMON_TCG_API_KEY", "shared")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Catalog.APIKey != "prefixed" {
		t.Fatalf("Catalog.APIKey = %q, want prefixed", cfg.Catalog.APIKey)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "bad_driver", body: "storage:\n  driver: s3\n", wantErr: "storage.driver"},
		{name: "minio_missing_fields", body: "storage:\n  driver: minio\n", wantErr: "storage.minio.endpoint is required"},
		{name: "bad_port", body: "server:\n  port: 70000\n", wantErr: "server.port"},
		{name: "bad_yaml", body: "server: [", wantErr: "parsing config file"},
		{name: "bad_proxy", body: "server:\n  trusted_proxies: [\"10.0.0.0/33\"]\n", wantErr: "server.trusted_proxies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMinIO(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: MinIO
  minio:
    endpoint: localhost:9000
    access_key: key
    bucket: pictures
`)
	t.Setenv("DECKS_STORAGE_MINIO_SECRET_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Driver != StorageDriverMinIO || cfg.Storage.MinIO.SecretKey != "secret" {
		t.Fatalf("Storage = %+v", cfg.Storage)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() error = nil, want error for missing file")
	}
}
