package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const EnvPrefix = "DEPLOYHOOK"

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Status StatusConfig `mapstructure:"status"`
	Docker DockerConfig `mapstructure:"docker"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StatusConfig struct {
	// Port of the deployment ledger listener; 0 disables it.
	Port int `mapstructure:"port"`
}

type DockerConfig struct {
	// Repo is the registry server address; empty means the public default.
	Repo string `mapstructure:"repo"`
	// Discovery is the command printing the engine environment. Empty uses
	// the DOCKER_* variables already present.
	Discovery   string `mapstructure:"discovery"`
	UsernameEnv string `mapstructure:"username_env"`
	PasswordEnv string `mapstructure:"password_env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance carrying every default, ready for flag binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("server.port", 3009)
	v.SetDefault("status.port", 0)
	v.SetDefault("docker.repo", "")
	v.SetDefault("docker.discovery", "docker-machine env default")
	v.SetDefault("docker.username_env", "DOCKER_USERNAME")
	v.SetDefault("docker.password_env", "DOCKER_PASSWORD")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and unmarshals everything into Config.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Status.Port < 0 || cfg.Status.Port > 65535 || (cfg.Status.Port != 0 && cfg.Status.Port == cfg.Server.Port) {
		return nil, fmt.Errorf("invalid status port %d", cfg.Status.Port)
	}
	return &cfg, nil
}

// NewLogger builds the process logger from the log settings.
func NewLogger(cfg LogConfig, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var w io.Writer
	switch strings.ToLower(cfg.Format) {
	case "json":
		w = out
	case "console", "":
		w = zerolog.ConsoleWriter{Out: out}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
