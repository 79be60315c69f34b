package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify   SpotifyConfig   `toml:"spotify"`
	Server    ServerConfig    `toml:"server"`
	Cookies   CookieConfig    `toml:"cookies"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
	Database  DatabaseConfig  `toml:"database"`
}

// SpotifyConfig contains the public PKCE client settings and Spotify endpoints.
//
// No client secret is stored: the relay authenticates as a public client.
type SpotifyConfig struct {
	ClientID    string   `toml:"client_id"`
	RedirectURI string   `toml:"redirect_uri"`
	Scopes      []string `toml:"scopes"`
	AuthURL     string   `toml:"auth_url"`
	TokenURL    string   `toml:"token_url"`
	APIURL      string   `toml:"api_url"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                string        `toml:"host"`
	Port                int           `toml:"port"`
	FrontendOrigin      string        `toml:"frontend_origin"`
	FrontendRedirectURL string        `toml:"frontend_redirect_url"`
	ReadTimeout         time.Duration `toml:"read_timeout"`
	WriteTimeout        time.Duration `toml:"write_timeout"`
	ShutdownTimeout     time.Duration `toml:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedirectTarget returns the frontend URL the callback sends the browser back to.
// It falls back to the frontend origin when no explicit redirect URL is set.
func (s ServerConfig) RedirectTarget() string {
	if s.FrontendRedirectURL != "" {
		return strings.TrimRight(s.FrontendRedirectURL, "/")
	}
	return strings.TrimRight(s.FrontendOrigin, "/")
}

// CookieConfig controls cookie attributes and optional sealing keys.
type CookieConfig struct {
	Secure   bool   `toml:"secure"`
	HashKey  string `toml:"hash_key"`
	BlockKey string `toml:"block_key"`
}

// RateLimitConfig limits how often a single client may start a login.
type RateLimitConfig struct {
	LoginPerMinute int `toml:"login_per_minute"`
	Burst          int `toml:"burst"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveConfig loads the config file at path when it exists (defaults otherwise),
// then applies environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config values from the process environment.
//
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win over the file.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("SPOTIFY_CLIENT_ID", &c.Spotify.ClientID)
	setString("SPOTIFY_REDIRECT_URI", &c.Spotify.RedirectURI)
	setString("FRONTEND_ORIGIN", &c.Server.FrontendOrigin)
	setString("FRONTEND_REDIRECT_URL", &c.Server.FrontendRedirectURL)
	setString("COOKIE_HASH_KEY", &c.Cookies.HashKey)
	setString("COOKIE_BLOCK_KEY", &c.Cookies.BlockKey)
	setString("DATABASE_PATH", &c.Database.Path)

	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT must be a number, got %q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}

	return nil
}

// Validate reports missing settings the relay cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "spotify.client_id (SPOTIFY_CLIENT_ID)")
	}
	if c.Spotify.RedirectURI == "" {
		missing = append(missing, "spotify.redirect_uri (SPOTIFY_REDIRECT_URI)")
	}
	if c.Server.FrontendOrigin == "" {
		missing = append(missing, "server.frontend_origin (FRONTEND_ORIGIN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port out of range: %d", ErrInvalidConfig, c.Server.Port)
	}

	switch len(c.Cookies.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("%w: cookies.block_key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}
	if c.Cookies.BlockKey != "" && c.Cookies.HashKey == "" {
		return fmt.Errorf("%w: cookies.block_key requires cookies.hash_key", ErrInvalidConfig)
	}

	return nil
}
