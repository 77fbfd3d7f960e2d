// Package config loads the immutable runtime configuration from flags, the
// process environment, the .env override file and an optional TOML file.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/ark-proxy/config.toml",
	"configs/config.toml",
}

// Environment variable names understood by the loader.
const (
	EnvPort          = "PORT"
	EnvAPIKey        = "ARK_API_KEY"
	EnvTextURL       = "ARK_API_URL"
	EnvTextModel     = "ARK_MODEL"
	EnvImageURL      = "ARK_IMAGE_API_URL"
	EnvImageModel    = "ARK_IMAGE_MODEL"
	defaultEnvFile   = ".env"
	placeholderKey   = "YOUR_API_KEY_HERE"
	defaultPort      = 3000
	defaultBodyLimit = 5 * 1024 * 1024 // 5 MiB
)

// Upstream defaults for the Volcengine Ark API.
const (
	DefaultTextURL    = "https://ark.cn-beijing.volces.com/api/v3/responses"
	DefaultTextModel  = "doubao-seed-2-0-pro-260215"
	DefaultImageURL   = "https://ark.cn-beijing.volces.com/api/v3/images/generations"
	DefaultImageModel = "doubao-seedream-4-5-251128"
	DefaultIndex      = "product-generator-orange.html"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Root     string `kong:"help='Project root holding the .env file and, by default, the static files.',default='.'"`
	EnvFile  string `kong:"name='env-file',help='Path to the .env override file (default: <root>/.env).'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides PORT and .env).'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`

	Version kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration. It is built once by Load
// and never mutated afterwards.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Static   StaticConfig   `toml:"static"`
	Ark      ArkConfig      `toml:"-"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved TOML path, empty when none was used
	envPath  string // .env path, empty when the file does not exist
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"-"` // from --port, PORT or .env
	BodyMaxBytes int64  `toml:"body_max_bytes"`
}

// StaticConfig controls static file serving.
type StaticConfig struct {
	Root  string `toml:"root"`
	Index string `toml:"index"`
}

// ArkConfig holds the upstream credential and endpoints. It is sourced only
// from the environment and the .env file.
type ArkConfig struct {
	APIKey     string
	TextURL    string
	TextModel  string
	ImageURL   string
	ImageModel string
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	TimeoutSeconds  int `toml:"timeout_seconds"` // 0 disables the client timeout
	IdleConnections int `toml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load builds the configuration. Precedence for each setting is
// flag > environment > .env file > default; the .env file only fills
// variables that are not present in the environment at all.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	root := cli.Root
	if root == "" {
		root = "."
	}
	envPath := cli.EnvFile
	if envPath == "" {
		envPath = filepath.Join(root, defaultEnvFile)
	}
	overrides, found, err := readEnvFile(envPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if found {
		cfg.envPath = envPath
	}
	if cfg.Static.Root == "" {
		cfg.Static.Root = root
	}

	if err := cfg.applyEnv(newLookup(os.LookupEnv, overrides)); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyEnv copies environment-sourced settings into the config.
func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer; got %q", EnvPort, v)
		}
		c.Server.Port = port
	}

	c.Ark.APIKey, _ = lookup(EnvAPIKey)
	c.Ark.TextURL, _ = lookup(EnvTextURL)
	c.Ark.TextModel, _ = lookup(EnvTextModel)
	c.Ark.ImageURL, _ = lookup(EnvImageURL)
	c.Ark.ImageModel, _ = lookup(EnvImageModel)
	return nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Ark.APIKey == placeholderKey {
		return fmt.Errorf("%s contains placeholder value; set a real key or leave it unset", EnvAPIKey)
	}

	for _, u := range []struct{ name, value string }{
		{EnvTextURL, c.Ark.TextURL},
		{EnvImageURL, c.Ark.ImageURL},
	} {
		if u.value == "" {
			continue
		}
		if err := validateURL(u.value); err != nil {
			return fmt.Errorf("%s: %w", u.name, err)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}

	if strings.ContainsAny(c.Static.Index, `/\`) {
		return fmt.Errorf("static.index must be a file name; got %q", c.Static.Index)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/api/text", "/api/image", "/healthz", "/proxy/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
		if p == "/" {
			return fmt.Errorf("metrics.path %q would shadow the static index", p)
		}
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("must be an http(s) URL; got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// A PORT of 0 (or unset) means the default port.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = defaultBodyLimit
	}
	if c.Static.Index == "" {
		c.Static.Index = DefaultIndex
	}
	if c.Ark.TextURL == "" {
		c.Ark.TextURL = DefaultTextURL
	}
	if c.Ark.TextModel == "" {
		c.Ark.TextModel = DefaultTextModel
	}
	if c.Ark.ImageURL == "" {
		c.Ark.ImageURL = DefaultImageURL
	}
	if c.Ark.ImageModel == "" {
		c.Ark.ImageModel = DefaultImageModel
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProxyEnabled reports whether a credential is configured.
func (c *ArkConfig) ProxyEnabled() bool {
	return c.APIKey != ""
}

// WarnPermissions logs a warning for each config source that is readable by
// group or others. The .env file usually carries the upstream credential.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	for _, p := range []string{c.filePath, c.envPath} {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if perm := info.Mode().Perm(); perm&0o077 != 0 {
			logger.Warn("config file is readable by group/others; consider chmod 600",
				"path", p,
				"mode", fmt.Sprintf("%04o", perm),
			)
		}
	}
}
