// Package config loads CLI settings from flags, IDEAR_* environment
// variables, an optional .env file and an optional idear.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/erazemk/idear/internal/client"
)

// Keys.
const (
	KeyAPI            = "api"
	KeyState          = "state"
	KeyLog            = "log"
	KeyRequestTimeout = "request_timeout"
	KeyEphemeral      = "ephemeral"
	KeyVerbose        = "verbose"
)

// Config is the resolved CLI configuration.
type Config struct {
	API            string        `mapstructure:"api"`
	State          string        `mapstructure:"state"`
	Log            string        `mapstructure:"log"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// Ephemeral keeps the session in memory only.
	Ephemeral bool `mapstructure:"ephemeral"`
	Verbose   bool `mapstructure:"verbose"`
}

// DefaultStatePath is $HOME/.idear/state.sqlite3, or a relative path when
// there is no home directory.
func DefaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".idear", "state.sqlite3")
	}
	return filepath.Join(home, ".idear", "state.sqlite3")
}

// New returns a viper instance with defaults and search paths set. Without
// searchPaths, idear.yaml is looked for in $HOME/.config/idear and the
// working directory.
func New(searchPaths ...string) *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAPI, client.DefaultBaseURL)
	v.SetDefault(KeyState, DefaultStatePath())
	v.SetDefault(KeyLog, "")
	v.SetDefault(KeyRequestTimeout, time.Duration(0))
	v.SetDefault(KeyEphemeral, false)
	v.SetDefault(KeyVerbose, false)

	v.SetConfigName("idear")
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		if home, err := os.UserHomeDir(); err == nil {
			searchPaths = append(searchPaths, filepath.Join(home, ".config", "idear"))
		}
		searchPaths = append(searchPaths, ".")
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("IDEAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads .env from the working directory if there is one.
// Variables already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads the config file, if any, and resolves v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that would only fail later.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url %q", c.API)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("invalid request_timeout %s", c.RequestTimeout)
	}
	if !c.Ephemeral && c.State == "" {
		return errors.New("state path is empty")
	}
	return nil
}
