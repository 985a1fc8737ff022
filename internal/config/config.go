// Package config loads phpfarm settings from defaults, config.yaml and
// PHPFARM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/frederic-klein/phpfarm/internal/release"
)

const (
	// AppDir is the per-root state directory.
	AppDir = ".phpfarm"
	// ConfigFileName is the config file looked up in AppDir.
	ConfigFileName = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. PHPFARM_ROOT.
	EnvPrefix = "PHPFARM"
)

// Config is the resolved configuration.
type Config struct {
	Root      string        `mapstructure:"root"`
	Extension string        `mapstructure:"extension"`
	Branches  []string      `mapstructure:"branches"`
	Workers   int           `mapstructure:"workers"`
	FeedTTL   time.Duration `mapstructure:"feed_ttl"`
	Feeds     Feeds         `mapstructure:"feeds"`
	BackupDir string        `mapstructure:"backup_dir"`
	Mirror    Mirror        `mapstructure:"mirror"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Feeds are the upstream release catalogs.
type Feeds struct {
	Current string `mapstructure:"current"`
	Museum  string `mapstructure:"museum"`
}

// Mirror configures the optional archive mirror.
type Mirror struct {
	S3 S3 `mapstructure:"s3"`
}

// S3 locates an S3-compatible bucket holding release archives.
type S3 struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Push      bool   `mapstructure:"push"`
}

// Enabled reports whether a mirror bucket is configured.
func (s S3) Enabled() bool {
	return s.Bucket != ""
}

// defaultBranches are the branches an empty specifier ranges over.
var defaultBranches = []string{"8.2", "8.3", "8.4", "8.5"}

// Default returns the built-in configuration for root.
func Default(root string) *Config {
	return &Config{
		Root:      root,
		Extension: string(release.Bzip2),
		Branches:  append([]string(nil), defaultBranches...),
		Workers:   4,
		FeedTTL:   24 * time.Hour,
		Feeds: Feeds{
			Current: "https://www.php.net",
			Museum:  "https://museum.php.net",
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("root", d.Root)
	v.SetDefault("extension", d.Extension)
	v.SetDefault("branches", d.Branches)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("feed_ttl", d.FeedTTL)
	v.SetDefault("feeds.current", d.Feeds.Current)
	v.SetDefault("feeds.museum", d.Feeds.Museum)
	v.SetDefault("backup_dir", "")
	// Empty defaults make the keys visible to AutomaticEnv during Unmarshal.
	for _, k := range []string{"bucket", "prefix", "region", "endpoint", "access_key", "secret_key"} {
		v.SetDefault("mirror.s3."+k, "")
	}
	v.SetDefault("mirror.s3.path_style", false)
	v.SetDefault("mirror.s3.push", false)
}

// Load reads the configuration. An explicit file must exist; otherwise
// <root>/.phpfarm/config.yaml is read when present. The root itself may
// only come from PHPFARM_ROOT or the home directory.
func Load(file string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default(home))

	root := v.GetString("root")
	if file == "" {
		candidate := filepath.Join(root, AppDir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			file = candidate
		}
	} else if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("config file %s: %w", file, err)
	}

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed as defaults.
func (c *Config) Validate() error {
	var errs []error
	if c.Root == "" {
		errs = append(errs, errors.New("root is empty"))
	}
	if _, err := c.Compression(); err != nil {
		errs = append(errs, fmt.Errorf("extension: %w", err))
	}
	if _, err := c.DefaultBranches(); err != nil {
		errs = append(errs, fmt.Errorf("branches: %w", err))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

// Compression returns the configured archive kind.
func (c *Config) Compression() (release.Compression, error) {
	return release.ParseCompression(c.Extension)
}

// DefaultBranches parses the configured branch list.
func (c *Config) DefaultBranches() ([]release.Branch, error) {
	out := make([]release.Branch, 0, len(c.Branches))
	for _, s := range c.Branches {
		// PHPFARM_BRANCHES arrives as one space separated string.
		for _, f := range strings.Fields(s) {
			b, err := release.ParseBranch(f)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no branches configured")
	}
	return out, nil
}

// StateDir is <root>/.phpfarm.
func (c *Config) StateDir() string {
	return filepath.Join(c.Root, AppDir)
}

// TarballsDir is the registry directory.
func (c *Config) TarballsDir() string {
	return filepath.Join(c.StateDir(), "tarballs")
}

// HooksDir holds the post-extract, configure and make hooks.
func (c *Config) HooksDir() string {
	return filepath.Join(c.StateDir(), "hooks")
}

// FeedsDir caches the upstream feed responses.
func (c *Config) FeedsDir() string {
	return filepath.Join(c.StateDir(), "feeds")
}
