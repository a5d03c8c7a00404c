// Package config loads the TOML configuration shared by the server and the CLI.
//
// Precedence, lowest first:
//
//	embedded config.example.toml → config file → environment variables
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// AppName names the per-user config and state directories.
const AppName = "poetry-studio"

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Storage  StorageConfig  `toml:"storage"`
	Generate GenerateConfig `toml:"generate"`
	Draft    DraftConfig    `toml:"draft"`
	Client   ClientConfig   `toml:"client"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	StaticDir     string `toml:"static_dir"`
	SecureCookies bool   `toml:"secure_cookies"`
}

// Addr is the listen address, e.g. ":8080".
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	PasswordHash string        `toml:"password_hash"`
	JWTSecret    string        `toml:"jwt_secret"`
	TokenTTL     time.Duration `toml:"token_ttl"`
}

// Enabled reports whether login is configured. Both values are needed.
func (a AuthConfig) Enabled() bool {
	return a.PasswordHash != "" && a.JWTSecret != ""
}

// StorageConfig points at an S3-compatible bucket (AWS, R2, MinIO).
type StorageConfig struct {
	Endpoint      string `toml:"endpoint"`
	Region        string `toml:"region"`
	Bucket        string `toml:"bucket"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Enabled reports whether a bucket is configured.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type GenerateConfig struct {
	Token             string        `toml:"token"`
	BaseURL           string        `toml:"base_url"`
	Models            []string      `toml:"models"`
	RetryWait         time.Duration `toml:"retry_wait"`
	MinLength         int           `toml:"min_length"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Timeout           time.Duration `toml:"timeout"`
}

// Draft backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// DraftConfig selects where local state (drafts, background choice, session
// token) is kept.
type DraftConfig struct {
	Backend          string        `toml:"backend"`
	Dir              string        `toml:"dir"`
	RedisAddr        string        `toml:"redis_addr"`
	RedisPassword    string        `toml:"redis_password"`
	RedisPrefix      string        `toml:"redis_prefix"`
	AutosaveInterval time.Duration `toml:"autosave_interval"`
}

type ClientConfig struct {
	APIURL  string        `toml:"api_url"`
	Timeout time.Duration `toml:"timeout"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// SlogLevel converts the configured level. Unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DefaultConfig returns the embedded example configuration.
func DefaultConfig() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// LoadConfig reads path on top of the defaults. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Load resolves the configuration used by the binaries.
//
// An explicit path must exist. With an empty path the default location is used
// when a file is there, and the embedded defaults otherwise. Environment
// overrides are applied last.
func Load(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)

	switch {
	case path != "":
		cfg, err = LoadConfig(path)
	default:
		def, derr := DefaultPath()
		if derr == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				cfg, err = LoadConfig(def)
				break
			}
		}
		cfg = DefaultConfig()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides values from the environment. lookup is os.LookupEnv in
// production and a map in tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, names ...string) {
		for _, n := range names {
			if v, ok := lookup(n); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	str(&c.Server.Host, "POETRY_HOST")
	str(&c.Server.StaticDir, "POETRY_STATIC_DIR")
	str(&c.Database.Path, "DB_PATH", "POETRY_DB_PATH")

	str(&c.Auth.PasswordHash, "POETRY_PASSWORD_HASH")
	str(&c.Auth.JWTSecret, "JWT_SECRET", "POETRY_JWT_SECRET")

	str(&c.Storage.Endpoint, "POETRY_S3_ENDPOINT")
	str(&c.Storage.Region, "POETRY_S3_REGION")
	str(&c.Storage.Bucket, "POETRY_S3_BUCKET")
	str(&c.Storage.AccessKey, "POETRY_S3_ACCESS_KEY")
	str(&c.Storage.SecretKey, "POETRY_S3_SECRET_KEY")
	str(&c.Storage.PublicBaseURL, "POETRY_S3_PUBLIC_URL")

	str(&c.Generate.Token, "HF_TOKEN", "POETRY_HF_TOKEN")

	str(&c.Draft.Backend, "POETRY_DRAFT_BACKEND")
	str(&c.Draft.Dir, "POETRY_STATE_DIR")
	str(&c.Draft.RedisAddr, "POETRY_REDIS_ADDR")
	str(&c.Draft.RedisPassword, "POETRY_REDIS_PASSWORD")

	str(&c.Client.APIURL, "POETRY_API_URL")
	str(&c.Log.Level, "POETRY_LOG_LEVEL")
	return nil
}

// Validate rejects configurations the binaries cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if (c.Auth.PasswordHash == "") != (c.Auth.JWTSecret == "") {
		errs = append(errs, errors.New("auth.password_hash and auth.jwt_secret must be set together"))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	switch c.Draft.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("draft.backend %q must be file, redis or memory", c.Draft.Backend))
	}
	if c.Generate.MinLength < 0 {
		errs = append(errs, errors.New("generate.min_length must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// StateDir is where the file draft backend keeps its data.
func (c *Config) StateDir() (string, error) {
	if c.Draft.Dir != "" {
		return c.Draft.Dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locating user config dir: %w", err)
	}
	return filepath.Join(base, AppName, "state"), nil
}

// DefaultPath is <user config dir>/poetry-studio/config.toml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locating user config dir: %w", err)
	}
	return filepath.Join(base, AppName, "config.toml"), nil
}

// CreateConfigFile writes the embedded example to path. An existing file is
// never overwritten.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
