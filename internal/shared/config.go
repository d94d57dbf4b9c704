package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Pinterest PinterestConfig `toml:"pinterest"`
	Storage   StorageConfig   `toml:"storage"`
	Database  DatabaseConfig  `toml:"database"`
	Remote    RemoteConfig    `toml:"remote"`
	Server    ServerConfig    `toml:"server"`
	DocStore  DocStoreConfig  `toml:"docstore"`
}

// PinterestConfig contains the OAuth application credentials and endpoints.
type PinterestConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	OAuthURL     string   `toml:"oauth_url"`
	APIURL       string   `toml:"api_url"`
	ProxyURL     string   `toml:"proxy_url"`
	Scopes       []string `toml:"scopes"`
	RateLimit    float64  `toml:"rate_limit"`
}

// StorageConfig selects the persistence backend and the owner key the store is scoped to.
type StorageConfig struct {
	Backend  string `toml:"backend"`
	OwnerKey string `toml:"owner_key"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RemoteConfig points the remote backend at a document store.
//
// When Token is empty and Secret is set, a token for the owner key is minted locally.
type RemoteConfig struct {
	URL    string `toml:"url"`
	Token  string `toml:"token"`
	Secret string `toml:"secret"`
}

// ServerConfig contains HTTP server settings for the callback listener and the token proxy.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	ProxyPort      int      `toml:"proxy_port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DocStoreConfig contains settings for the document store server.
type DocStoreConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Secret         string   `toml:"secret"`
	AllowedOrigins []string `toml:"allowed_origins"`
	Persist        bool     `toml:"persist"`
}

// Addr returns the listen address for the server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProxyAddr returns the listen address for the token proxy.
func (s ServerConfig) ProxyAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.ProxyPort)
}

// Addr returns the listen address for the document store.
func (d DocStoreConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Validate checks the settings required to run the OAuth connect flow.
func (c *Config) Validate() error {
	p := c.Pinterest
	if p.ClientID == "" || p.ClientSecret == "" {
		return fmt.Errorf("%w: pinterest client_id and client_secret are required", ErrMissingCredentials)
	}
	if _, err := url.ParseRequestURI(p.RedirectURI); err != nil {
		return fmt.Errorf("%w: redirect_uri %q: %v", ErrInvalidConfig, p.RedirectURI, err)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case BackendLocal, "":
	case BackendRemote:
		if c.Remote.URL == "" {
			return fmt.Errorf("%w: remote backend requires remote.url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values from [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
