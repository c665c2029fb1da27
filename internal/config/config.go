// Package config loads the settings shared by the mediainfo binaries from a
// YAML file and the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"

	"github.com/simonhull/mediainfo"
	"github.com/simonhull/mediainfo/internal/logger"
)

// Config is the configuration of a mediainfo binary. Environment variables
// take precedence over the file.
type Config struct {
	Engine   EngineConfig `yaml:"engine"`
	Cache    CacheConfig  `yaml:"cache"`
	Server   ServerConfig `yaml:"server"`
	LogLevel string       `yaml:"log_level" env:"MEDIAINFO_LOG_LEVEL" env-default:"WARNING"`
}

// EngineConfig selects and tunes the analysis engine.
type EngineConfig struct {
	Name           string            `yaml:"name" env:"MEDIAINFO_ENGINE" env-default:"native"`
	Library        string            `yaml:"library" env:"MEDIAINFO_LIBRARY"`
	ParseSpeed     float64           `yaml:"parse_speed" env:"MEDIAINFO_PARSE_SPEED" env-default:"0.5"`
	Full           bool              `yaml:"full" env:"MEDIAINFO_FULL" env-default:"true"`
	Legacy         bool              `yaml:"legacy_stream_display" env:"MEDIAINFO_LEGACY"`
	CoverData      bool              `yaml:"cover_data" env:"MEDIAINFO_COVER_DATA"`
	Options        map[string]string `yaml:"options" env:"MEDIAINFO_ENGINE_OPTIONS"`
	EncodingErrors string            `yaml:"encoding_errors" env:"MEDIAINFO_ENCODING_ERRORS" env-default:"strict"`
	Timeout        time.Duration     `yaml:"timeout" env:"MEDIAINFO_TIMEOUT" env-default:"0s"`
}

// CacheConfig locates the report cache. An empty Path disables caching.
type CacheConfig struct {
	Path   string        `yaml:"path" env:"MEDIAINFO_CACHE"`
	MaxAge time.Duration `yaml:"max_age" env:"MEDIAINFO_CACHE_MAX_AGE" env-default:"720h"`
}

// ServerConfig is used by mediainfo-server only.
type ServerConfig struct {
	Host          string `yaml:"host" env:"HOST_ADDR" env-default:"0.0.0.0"`
	Port          int    `yaml:"port" env:"HOST_PORT" env-default:"8080"`
	MediaRoot     string `yaml:"media_root" env:"MEDIAINFO_MEDIA_ROOT"`
	MaxUploadSize int64  `yaml:"max_upload_size" env:"MEDIAINFO_MAX_UPLOAD_SIZE" env-default:"1073741824"`
}

// Load reads the configuration. With an empty path only the environment and
// the defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
		}
	} else {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, err
		}
		if err := cleanenv.ReadConfig(expanded, cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", expanded, err)
		}
	}

	if err := cfg.expand(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expand() error {
	for _, p := range []*string{&c.Engine.Library, &c.Cache.Path, &c.Server.MediaRoot} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (logger.LogStatus, error) {
	return logger.ParseLevel(c.LogLevel)
}

// Options translates the engine settings into library options.
func (c *Config) Options() []mediainfo.Option {
	opts := []mediainfo.Option{
		mediainfo.WithEngine(c.Engine.Name),
		mediainfo.WithParseSpeed(c.Engine.ParseSpeed),
		mediainfo.WithFull(c.Engine.Full),
		mediainfo.WithEncodingErrors(c.Engine.EncodingErrors),
		mediainfo.WithTimeout(c.Engine.Timeout),
	}
	if c.Engine.Library != "" {
		opts = append(opts, mediainfo.WithLibrary(c.Engine.Library))
	}
	if c.Engine.Legacy {
		opts = append(opts, mediainfo.WithLegacyStreamDisplay())
	}
	if c.Engine.CoverData {
		opts = append(opts, mediainfo.WithCoverData())
	}
	if len(c.Engine.Options) > 0 {
		opts = append(opts, mediainfo.WithEngineOptions(c.Engine.Options))
	}
	return opts
}

// OpenCache opens the configured cache and drops entries older than MaxAge.
// It returns nil when caching is disabled.
func (c *Config) OpenCache() (*mediainfo.Cache, error) {
	if c.Cache.Path == "" {
		return nil, nil
	}
	store, err := mediainfo.OpenCache(c.Cache.Path)
	if err != nil {
		return nil, err
	}
	if c.Cache.MaxAge > 0 {
		if _, err := store.Purge(context.Background(), time.Now().Add(-c.Cache.MaxAge)); err != nil {
			store.Close()
			return nil, fmt.Errorf("purge cache: %w", err)
		}
	}
	return store, nil
}
