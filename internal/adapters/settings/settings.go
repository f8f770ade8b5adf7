// Package settings loads rig's runtime configuration from a file and RIG_* environment variables.
package settings

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/zerr"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "RIG"

// Drivers.
const (
	DriverDocker = "docker"
	DriverLocal  = "local"
)

// Cache backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendHTTP  = "http"
)

// Settings holds rig's runtime configuration.
type Settings struct {
	Log    LogSettings    `mapstructure:"LOG"`
	Env    EnvSettings    `mapstructure:"ENV"`
	Cache  CacheSettings  `mapstructure:"CACHE"`
	Server ServerSettings `mapstructure:"SERVER"`
}

// LogSettings configures the logger.
type LogSettings struct {
	Level  string `mapstructure:"LEVEL"`
	Format string `mapstructure:"FORMAT"`
}

// EnvSettings configures how execution environments are provisioned.
type EnvSettings struct {
	Driver string `mapstructure:"DRIVER"`
	Docker string `mapstructure:"DOCKER"`
	Home   string `mapstructure:"HOME"`
}

// CacheSettings selects and configures the blob store.
type CacheSettings struct {
	Backend   string     `mapstructure:"BACKEND"`
	Dir       string     `mapstructure:"DIR"`
	Namespace string     `mapstructure:"NAMESPACE"`
	S3        S3Settings `mapstructure:"S3"`
	URL       string     `mapstructure:"URL"`
}

// S3Settings configures the S3 blob store.
type S3Settings struct {
	Bucket    string `mapstructure:"BUCKET"`
	Prefix    string `mapstructure:"PREFIX"`
	Region    string `mapstructure:"REGION"`
	Endpoint  string `mapstructure:"ENDPOINT"`
	AccessKey string `mapstructure:"ACCESS_KEY"`
	SecretKey string `mapstructure:"SECRET_KEY"`
}

// ServerSettings configures `rig cache serve`.
type ServerSettings struct {
	Addr string `mapstructure:"ADDR"`
}

// Load reads settings for a workspace. Values come from, in increasing
// precedence: defaults, config.yaml in $HOME/.rig, config.yaml in
// <workspace>/.rig, and RIG_* environment variables.
func Load(workspace string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName(domain.SettingsFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(workspace, domain.RigDirName))
	v.AddConfigPath(filepath.Join("$HOME", domain.RigDirName))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Join(domain.ErrSettingsLoadFailed, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Join(domain.ErrSettingsLoadFailed, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(s.Cache.Dir) {
		s.Cache.Dir = filepath.Join(workspace, s.Cache.Dir)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG.LEVEL", "info")
	v.SetDefault("LOG.FORMAT", "pretty")
	v.SetDefault("ENV.DRIVER", DriverDocker)
	v.SetDefault("ENV.DOCKER", "docker")
	v.SetDefault("ENV.HOME", "")
	v.SetDefault("CACHE.BACKEND", BackendLocal)
	v.SetDefault("CACHE.DIR", domain.DefaultCachePath())
	v.SetDefault("CACHE.NAMESPACE", domain.DefaultNamespace)
	v.SetDefault("CACHE.S3.BUCKET", "")
	v.SetDefault("CACHE.S3.PREFIX", "rig")
	v.SetDefault("CACHE.S3.REGION", "us-east-1")
	v.SetDefault("CACHE.S3.ENDPOINT", "")
	v.SetDefault("CACHE.S3.ACCESS_KEY", "")
	v.SetDefault("CACHE.S3.SECRET_KEY", "")
	v.SetDefault("CACHE.URL", "")
	v.SetDefault("SERVER.ADDR", "127.0.0.1:8780")
}

// Validate checks that the selected driver and backend are known and configured.
func (s *Settings) Validate() error {
	switch s.Env.Driver {
	case DriverDocker, DriverLocal:
	default:
		return zerr.With(zerr.Wrap(domain.ErrUnknownDriver, "invalid settings"), "driver", s.Env.Driver)
	}

	switch s.Cache.Backend {
	case BackendLocal:
	case BackendS3:
		if s.Cache.S3.Bucket == "" {
			return zerr.With(zerr.Wrap(domain.ErrSettingsLoadFailed, "s3 backend requires a bucket"), "key", "RIG_CACHE_S3_BUCKET")
		}
	case BackendHTTP:
		if s.Cache.URL == "" {
			return zerr.With(zerr.Wrap(domain.ErrSettingsLoadFailed, "http backend requires a url"), "key", "RIG_CACHE_URL")
		}
	default:
		return zerr.With(zerr.Wrap(domain.ErrUnknownCacheBackend, "invalid settings"), "backend", s.Cache.Backend)
	}

	if s.Cache.Namespace == "" {
		s.Cache.Namespace = domain.DefaultNamespace
	}
	return nil
}
