package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// DECKS_AUTH_TOKEN_SECRET or DECKS_STORAGE_MINIO_SECRET_KEY.
const EnvPrefix = "DECKS_"

// DefaultTokenSecret is the signing secret used when none is configured.
const DefaultTokenSecret = "thisisasecret"

const (
	StorageDriverFS    = "fs"
	StorageDriverMinIO = "minio"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Auth     AuthConfig     `yaml:"auth" envPrefix:"AUTH_"`
	Storage  StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Catalog  CatalogConfig  `yaml:"catalog" envPrefix:"CATALOG_"`
	Profile  ProfileConfig  `yaml:"profile" envPrefix:"PROFILE_"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	TrustedProxies  []string      `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	AuthRateLimit   int           `yaml:"auth_rate_limit" env:"AUTH_RATE_LIMIT"`
	APIRateLimit    int           `yaml:"api_rate_limit" env:"API_RATE_LIMIT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type AuthConfig struct {
	TokenSecret string `yaml:"token_secret" env:"TOKEN_SECRET"`
}

type StorageConfig struct {
	Driver         string      `yaml:"driver" env:"DRIVER"`
	Path           string      `yaml:"path" env:"PATH"`
	MaxUploadBytes int64       `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	MinIO          MinIOConfig `yaml:"minio" envPrefix:"MINIO_"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
}

type CatalogConfig struct {
	Path       string   `yaml:"path" env:"PATH"`
	APIBaseURL string   `yaml:"api_base_url" env:"API_BASE_URL"`
	APIKey     string   `yaml:"api_key" env:"API_KEY"`
	Sets       []string `yaml:"sets" env:"SETS"`
}

type ProfileConfig struct {
	TrustedImageHosts []string `yaml:"trusted_image_hosts" env:"TRUSTED_IMAGE_HOSTS"`
	PictureMaxEdge    int      `yaml:"picture_max_edge" env:"PICTURE_MAX_EDGE"`
}

// sharedEnv holds variables read without the DECKS_ prefix.
type sharedEnv struct {
	PokemonTCGAPIKey string `env:"POKEMON_TCG_API_KEY"`
}

// Load reads the YAML file at path, applies environment overrides, then
// validates and fills defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return err
	}

	var shared sharedEnv
	if err := env.Parse(&shared); err != nil {
		return err
	}
	if c.Catalog.APIKey == "" {
		c.Catalog.APIKey = shared.PokemonTCGAPIKey
	}
	return nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 0 and 65535"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must not be negative"))
	}
	if c.Storage.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("storage.max_upload_bytes must not be negative"))
	}
	if c.Profile.PictureMaxEdge < 0 {
		errs = append(errs, fmt.Errorf("profile.picture_max_edge must not be negative"))
	}

	for _, proxy := range c.Server.TrustedProxies {
		if !validProxy(proxy) {
			errs = append(errs, fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", proxy))
		}
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "", StorageDriverFS:
	case StorageDriverMinIO:
		if c.Storage.MinIO.Endpoint == "" {
			errs = append(errs, fmt.Errorf("storage.minio.endpoint is required"))
		}
		if c.Storage.MinIO.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage.minio.bucket is required"))
		}
		if c.Storage.MinIO.AccessKey == "" || c.Storage.MinIO.SecretKey == "" {
			errs = append(errs, fmt.Errorf("storage.minio.access_key and storage.minio.secret_key are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q", StorageDriverFS, StorageDriverMinIO))
	}

	return errors.Join(errs...)
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 4 << 20
	}
	if c.Server.AuthRateLimit == 0 {
		c.Server.AuthRateLimit = 10
	}
	if c.Server.APIRateLimit == 0 {
		c.Server.APIRateLimit = 300
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/decks.db"
	}
	if c.Auth.TokenSecret == "" {
		c.Auth.TokenSecret = DefaultTokenSecret
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverFS
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/media"
	}
	if c.Storage.MaxUploadBytes == 0 {
		c.Storage.MaxUploadBytes = 2 << 20
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "./data/sm-cards.json"
	}
	if len(c.Catalog.Sets) == 0 {
		c.Catalog.Sets = []string{"sm1", "sm2", "sm3", "sm4", "sm5", "sm6", "sm7", "sm8", "sm9", "sm10", "sm11", "sm12"}
	}
	if len(c.Profile.TrustedImageHosts) == 0 {
		c.Profile.TrustedImageHosts = []string{"images.pokemontcg.io"}
	}
	if c.Profile.PictureMaxEdge == 0 {
		c.Profile.PictureMaxEdge = 512
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// UsesDefaultSecret reports whether tokens are signed with the built-in
// development secret.
func (c *Config) UsesDefaultSecret() bool {
	return c.Auth.TokenSecret == DefaultTokenSecret
}

func validProxy(raw string) bool {
	raw = strings.TrimSpace(raw)
	if _, err := netip.ParseAddr(raw); err == nil {
		return true
	}
	_, err := netip.ParsePrefix(raw)
	return err == nil
}
