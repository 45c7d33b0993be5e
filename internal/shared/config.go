package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Credentials CredentialsConfig `toml:"credentials"`
	Push        PushConfig        `toml:"push"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
	Reminders   RemindersConfig   `toml:"reminders"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	SoundCloud SoundCloudConfig `toml:"soundcloud"`
	Resend     ResendConfig     `toml:"resend"`
}

// SoundCloudConfig contains SoundCloud OAuth2 application credentials.
type SoundCloudConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// Map returns the credentials in the map form accepted by services.NewSoundCloudService.
func (c SoundCloudConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURI,
	}
}

// ResendConfig contains the Resend API key and default sender.
type ResendConfig struct {
	APIKey string `toml:"api_key"`
	From   string `toml:"from"`
}

// PushConfig contains VAPID keys and the notification defaults forced onto every push.
type PushConfig struct {
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`
	Subscriber      string `toml:"subscriber"`
	TTL             int    `toml:"ttl"`
	Icon            string `toml:"icon"`
	Badge           string `toml:"badge"`
	Tag             string `toml:"tag"`
}

// RateLimitConfig contains per-session request budgets for the stream and search APIs.
type RateLimitConfig struct {
	StreamPerMinute int `toml:"stream_per_minute"`
	StreamBurst     int `toml:"stream_burst"`
	SearchPerMinute int `toml:"search_per_minute"`
	SearchBurst     int `toml:"search_burst"`
}

// RemindersConfig controls the daily journaling reminder job.
type RemindersConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	BaseURL       string `toml:"base_url"`
	SecureCookies bool   `toml:"secure_cookies"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
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

// SaveConfig writes the configuration back to path as TOML.
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

// env variables that override secrets from the config file
const (
	EnvSoundCloudClientID     = "MOODTAPE_SOUNDCLOUD_CLIENT_ID"
	EnvSoundCloudClientSecret = "MOODTAPE_SOUNDCLOUD_CLIENT_SECRET"
	EnvResendAPIKey           = "RESEND_API_KEY"
	EnvVAPIDPublicKey         = "MOODTAPE_VAPID_PUBLIC_KEY"
	EnvVAPIDPrivateKey        = "MOODTAPE_VAPID_PRIVATE_KEY"
	EnvDatabasePath           = "MOODTAPE_DATABASE_PATH"
)

// LoadEnv loads variables from the given dotenv files (".env" when none are given) into the
// process environment. Missing files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: failed to load %s: %v", ErrInvalidConfig, f, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets in config with non-empty environment variables.
func (c *Config) ApplyEnv() {
	for env, target := range map[string]*string{
		EnvSoundCloudClientID:     &c.Credentials.SoundCloud.ClientID,
		EnvSoundCloudClientSecret: &c.Credentials.SoundCloud.ClientSecret,
		EnvResendAPIKey:           &c.Credentials.Resend.APIKey,
		EnvVAPIDPublicKey:         &c.Push.VAPIDPublicKey,
		EnvVAPIDPrivateKey:        &c.Push.VAPIDPrivateKey,
		EnvDatabasePath:           &c.Database.Path,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*target = v
		}
	}
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	}
	if c.RateLimit.StreamPerMinute <= 0 || c.RateLimit.SearchPerMinute <= 0 {
		return fmt.Errorf("%w: rate limits must be positive", ErrInvalidConfig)
	}
	return nil
}
