package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PlaceholderAccessKey is the shipped value of unsplash.access_key. Image
// lookups treat it the same as an empty key.
const PlaceholderAccessKey = "YOUR_ACCESS_KEY_HERE"

const defaultConfigFile = "config.yaml"

type Config struct {
	Unsplash UnsplashConfig `mapstructure:"unsplash"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Location LocationConfig `mapstructure:"location"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	API      APIConfig      `mapstructure:"api"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Database DatabaseConfig `mapstructure:"database"`

	// File is the config file Load read, empty when none was found.
	File string `mapstructure:"-"`
}

// SavePath is where settings changed at runtime are written back: the file
// that was loaded, or ./config.yaml when none was.
func (c *Config) SavePath() string {
	if c.File != "" {
		return c.File
	}
	return defaultConfigFile
}

type UnsplashConfig struct {
	AccessKey   string        `mapstructure:"access_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	FallbackURL string        `mapstructure:"fallback_url"`
}

type RefreshConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	SkipIfRunning bool          `mapstructure:"skip_if_running"`
}

type LocationConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type CatalogConfig struct {
	File string `mapstructure:"file"`
}

type APIConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
	// CORSOrigins lists origins allowed to call the API from a browser.
	// "*" allows any origin; empty disables CORS.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads the YAML config into a fresh viper instance. A missing config
// file is not an error; defaults and OPPOSITE_CLOCK_* env vars still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/opposite-clock")
	}

	setDefaults(v)

	v.SetEnvPrefix("OPPOSITE_CLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.File = v.ConfigFileUsed()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("unsplash.access_key", PlaceholderAccessKey)
	v.SetDefault("unsplash.base_url", "https://api.unsplash.com")
	v.SetDefault("unsplash.timeout", "10s")
	v.SetDefault("unsplash.fallback_url", "https://images.unsplash.com/photo-1514565131-fce0801e5785?w=1920&q=80")
	v.SetDefault("refresh.interval", "60s")
	v.SetDefault("refresh.skip_if_running", false)
	v.SetDefault("location.timezone", "")
	v.SetDefault("catalog.file", "")
	v.SetDefault("api.port", 8046)
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.cors_origins", []string{})
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "opposite-clock")
	v.SetDefault("mqtt.client_id", "opposite-clock")
	v.SetDefault("database.path", "./opposite-clock.db")
}

// SaveAccessKey writes the Unsplash key back to the config file at path,
// keeping the other keys already in the file.
func SaveAccessKey(path, accessKey string) error {
	if path == "" {
		path = defaultConfigFile
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !isNotExist(err) {
			return err
		}
	}

	v.Set("unsplash.access_key", accessKey)
	return v.WriteConfigAs(path)
}

func isNotExist(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

// LoadDotEnv exports the variables in each existing file, so OPPOSITE_CLOCK_*
// entries in a .env file act like real environment variables. Missing files
// are skipped and variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}
