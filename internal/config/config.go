package config

import (
	"errors"
	"strings"
	"time"
)

// KeychainService is the secret-store service name all secrets live under.
const KeychainService = "problems-analyzer"

// Secret-store accounts.
const (
	AccountAPIKey = "service_api_key"
	AccountToken  = "session_token"
)

type Config struct {
	Catalog  EndpointConfig
	Analysis EndpointConfig
	Service  ServiceConfig
	Server   ServerConfig
	Storage  StorageConfig
	History  HistoryConfig
	Log      LogConfig
}

// EndpointConfig locates one remote service.
type EndpointConfig struct {
	BaseURL string
	Path    string
}

type ServiceConfig struct {
	APIKey  string
	Timeout string
}

type ServerConfig struct {
	Port           int
	MaxConns       int
	AllowedOrigins string
}

type StorageConfig struct {
	DataDir string
}

type HistoryConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Catalog: EndpointConfig{
			BaseURL: "http://localhost:8000",
			Path:    "/user/classify/tags",
		},
		Analysis: EndpointConfig{
			BaseURL: "http://localhost:8000",
			Path:    "/user/analysis",
		},
		Service: ServiceConfig{
			Timeout: "30s",
		},
		Server: ServerConfig{
			Port:     4100,
			MaxConns: 64,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ServiceTimeout parses Service.Timeout, falling back to 30s when it is
// empty or malformed.
func (c Config) ServiceTimeout() time.Duration {
	d, err := time.ParseDuration(c.Service.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Origins splits Server.AllowedOrigins on commas.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.Server.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.problems-analyzer.app)
// and secrets live in the login Keychain.
// On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/problems-analyzer/config.json and secrets are kept in
// $XDG_DATA_HOME/problems-analyzer/secrets.json.
//
// Environment variables (PROBLEMS_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), PlatformKeychain())
}

// ErrSecretNotFound is returned by a Keychain when the account has no value.
var ErrSecretNotFound = errors.New("secret not found")

// Keychain abstracts the platform secret store. Delete of a missing
// account is not an error.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
	Delete(service, account string) error
}

func loadWith(b Backend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// The API key is optional; only some deployments require it.
	if cfg.Service.APIKey == "" {
		if key, err := kc.Get(KeychainService, AccountAPIKey); err == nil && key != "" {
			cfg.Service.APIKey = key
		}
	}

	return cfg, nil
}

// PlatformKeychain returns the secret store for this platform.
func PlatformKeychain() Keychain {
	return platformKeychain{}
}

type platformKeychain struct{}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

func (platformKeychain) Delete(service, account string) error {
	return keychainDelete(service, account)
}
