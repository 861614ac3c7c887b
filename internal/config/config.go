// Package config assembles settings from defaults, an optional YAML file
// and the environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vthunder/focuspet/internal/attention"
	"github.com/vthunder/focuspet/internal/lists"
	"github.com/vthunder/focuspet/internal/logging"
	"github.com/vthunder/focuspet/internal/store"
)

// Config is the full runtime configuration
type Config struct {
	StatePath string `yaml:"state_path"`
	UserID    string `yaml:"user_id"`
	Debug     bool   `yaml:"debug"`

	Backend struct {
		URL          string        `yaml:"url"`
		Token        string        `yaml:"token"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"backend"`

	Store struct {
		Path   string `yaml:"path"`
		Driver string `yaml:"driver"`
	} `yaml:"store"`

	Lists struct {
		File      string `yaml:"file"`
		RulesFile string `yaml:"rules_file"`
	} `yaml:"lists"`

	Discord struct {
		Token     string `yaml:"token"`
		ChannelID string `yaml:"channel_id"`
	} `yaml:"discord"`

	NotifyFile string `yaml:"notify_file"`

	Browsers   []string             `yaml:"browsers"`
	Thresholds attention.Thresholds `yaml:"thresholds"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	var c Config
	c.StatePath = "state"
	c.Backend.PollInterval = lists.DefaultPollInterval
	c.Store.Driver = store.DriverCGO
	c.Thresholds = attention.DefaultThresholds()
	return c
}

// LoadEnv loads a .env file into the environment if one exists
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logging.Debug("config", "No .env file found, using environment variables")
	} else {
		logging.Info("config", "Loaded .env file")
	}
}

// Load reads path (if non-empty and present), then applies the environment.
// With an empty path FOCUS_CONFIG is consulted.
func Load(path string) (Config, error) {
	c := Default()

	if path == "" {
		path = os.Getenv("FOCUS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logging.Debug("config", "no config file at %s", path)
		case err != nil:
			return c, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return c, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := c.applyEnv(); err != nil {
		return c, err
	}
	c.fill()
	if err := c.Validate(); err != nil {
		return c, err
	}
	logging.SetDebug(c.Debug)
	return c, nil
}

func (c *Config) applyEnv() error {
	setString(&c.StatePath, "FOCUS_STATE_PATH")
	setString(&c.UserID, "FOCUS_USER_ID")
	setString(&c.Backend.URL, "FOCUS_BACKEND_URL")
	setString(&c.Backend.Token, "FOCUS_BACKEND_TOKEN")
	setString(&c.Store.Path, "FOCUS_DB_PATH")
	setString(&c.Store.Driver, "FOCUS_DB_DRIVER")
	setString(&c.Lists.File, "FOCUS_LISTS_FILE")
	setString(&c.Lists.RulesFile, "FOCUS_RULES_FILE")
	setString(&c.Discord.Token, "DISCORD_TOKEN")
	setString(&c.Discord.ChannelID, "DISCORD_CHANNEL_ID")
	setString(&c.NotifyFile, "FOCUS_NOTIFY_FILE")

	if v := os.Getenv("FOCUS_BROWSERS"); v != "" {
		c.Browsers = splitList(v)
	}
	if v := os.Getenv("FOCUS_DEBUG"); v != "" {
		c.Debug = v == "true"
	}
	if v := os.Getenv("FOCUS_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FOCUS_POLL_INTERVAL: %w", err)
		}
		c.Backend.PollInterval = d
	}
	if v := os.Getenv("FOCUS_GAZE_ALPHA"); v != "" {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FOCUS_GAZE_ALPHA: %w", err)
		}
		c.Thresholds.Alpha = a
	}
	return nil
}

// fill derives paths under StatePath that were left empty
func (c *Config) fill() {
	if c.StatePath == "" {
		c.StatePath = "state"
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.StatePath, "focus.db")
	}
	if c.Store.Driver == "" {
		c.Store.Driver = store.DriverCGO
	}
	if c.Lists.File == "" {
		c.Lists.File = filepath.Join(c.StatePath, "lists.yaml")
	}
	if c.Lists.RulesFile == "" {
		c.Lists.RulesFile = filepath.Join(c.StatePath, "rules.json")
	}
	if c.Backend.PollInterval <= 0 {
		c.Backend.PollInterval = lists.DefaultPollInterval
	}
	c.Thresholds.Normalize()
}

// Validate rejects settings no component can run with
func (c Config) Validate() error {
	switch c.Store.Driver {
	case store.DriverCGO, store.DriverPureGo:
	default:
		return fmt.Errorf("unknown store driver %q (want %s or %s)", c.Store.Driver, store.DriverCGO, store.DriverPureGo)
	}
	if (c.Discord.Token == "") != (c.Discord.ChannelID == "") {
		return errors.New("discord token and channel id must be set together")
	}
	return nil
}

// ActivityDir is where the activity log lives
func (c Config) ActivityDir() string {
	return filepath.Join(c.StatePath, "system")
}

// HasBackend reports whether a backend URL is configured
func (c Config) HasBackend() bool { return c.Backend.URL != "" }

// HasDiscord reports whether Discord notifications are configured
func (c Config) HasDiscord() bool { return c.Discord.Token != "" }

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
