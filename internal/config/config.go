package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Duration is a time.Duration read from a JSON string such as "168h".
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON writes the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all application configuration
type Config struct {
	Server struct {
		Port      string `json:"port" validate:"required,numeric"`
		StaticDir string `json:"static_dir"`
		Debug     bool   `json:"debug"`
	} `json:"server"`

	Database struct {
		Path string `json:"path" validate:"required"`
	} `json:"database"`

	Cache struct {
		TTL           Duration `json:"ttl" validate:"gt=0"`
		MaxEntries    int      `json:"max_entries" validate:"min=0"`
		MemoryEntries int      `json:"memory_entries" validate:"min=0"`
	} `json:"cache"`

	Remote Remote `json:"remote"`

	Log struct {
		Level string `json:"level" validate:"oneof=debug info warn error"`
		Path  string `json:"path"`
	} `json:"log"`
}

// Remote configures the remote product resolver.
type Remote struct {
	Type       string   `json:"type" validate:"oneof=openfoodfacts google offline"`
	BaseURL    string   `json:"base_url" validate:"omitempty,url"`
	Timeout    Duration `json:"timeout" validate:"gt=0"`
	MaxRetries int      `json:"max_retries" validate:"min=0,max=10"`
	UserAgent  string   `json:"user_agent"`
	Google     Google   `json:"google"`
}

// Google configures the Vertex AI resolver.
type Google struct {
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	Model           string `json:"model"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := presets()
	applyDefaults(cfg)
	return cfg
}

// presets holds the defaults for settings where zero is meaningful. They are
// in place before the file is read, so an explicit 0 in the file wins.
func presets() *Config {
	var cfg Config
	cfg.Cache.MaxEntries = 500
	cfg.Cache.MemoryEntries = 128
	cfg.Remote.MaxRetries = 3
	return &cfg
}

// LoadConfig loads configuration from a JSON file, then applies .env and
// environment overrides and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := presets()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A missing .env is normal; only the process environment is used then.
	_ = godotenv.Load()
	applyEnv(config)
	applyDefaults(config)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Remote.Type == "google" && cfg.Remote.Google.ProjectID == "" {
		return fmt.Errorf("invalid configuration: remote.google.project_id is required for the google resolver")
	}
	return nil
}

func applyEnv(c *Config) {
	setFromEnv(&c.Server.Port, "GROCERYLENS_PORT")
	setFromEnv(&c.Database.Path, "GROCERYLENS_DB_PATH")
	setFromEnv(&c.Log.Level, "GROCERYLENS_LOG_LEVEL")
	setFromEnv(&c.Log.Path, "GROCERYLENS_LOG_PATH")
	setFromEnv(&c.Remote.Type, "GROCERYLENS_REMOTE_TYPE")
	setFromEnv(&c.Remote.BaseURL, "GROCERYLENS_REMOTE_URL")
	setFromEnv(&c.Remote.Google.ProjectID, "GOOGLE_PROJECT_ID")
	setFromEnv(&c.Remote.Google.Location, "GOOGLE_LOCATION")
	setFromEnv(&c.Remote.Google.CredentialsFile, "GOOGLE_CREDENTIALS_FILE")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./static"
	}
	if c.Database.Path == "" {
		c.Database.Path = "grocerylens.db"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = Duration(7 * 24 * time.Hour)
	}
	if c.Remote.Type == "" {
		c.Remote.Type = "openfoodfacts"
	}
	if c.Remote.BaseURL == "" && c.Remote.Type == "openfoodfacts" {
		c.Remote.BaseURL = "https://world.openfoodfacts.org"
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = Duration(10 * time.Second)
	}
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = "grocerylens/1.0"
	}
	if c.Remote.Google.Location == "" {
		c.Remote.Google.Location = "us-central1"
	}
	if c.Remote.Google.Model == "" {
		c.Remote.Google.Model = "gemini-1.5-flash"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("GROCERYLENS_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
