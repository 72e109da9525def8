// Package settings loads poe's own tool settings: defaults, an optional
// config.yaml in the user config directory, and POE_* environment
// variables, in increasing precedence. Command-line flags are applied on
// top by the caller.
package settings

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "POE"

	KeyLogLevel   = "log_level"
	KeyShell      = "shell"
	KeyPython     = "python"
	KeyProjectDir = "project_dir"

	defaultLogLevel = "warn"
	defaultShell    = "sh"
	defaultPython   = "python"
)

// ErrInvalidSettings is returned when loaded settings fail validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds the values poe reads about itself, as opposed to the
// project config it runs tasks from.
type Settings struct {
	LogLevel   string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Shell      string `mapstructure:"shell" validate:"required"`
	Python     string `mapstructure:"python" validate:"required"`
	ProjectDir string `mapstructure:"project_dir"`
}

// Load reads settings from configDir/config.yaml and the environment.
// A missing config.yaml is not an error; an empty configDir skips the file.
func Load(configDir string) (*Settings, error) {
	v := viper.New()
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetDefault(KeyShell, defaultShell)
	v.SetDefault(KeyPython, defaultPython)
	v.SetDefault(KeyProjectDir, "")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configDir != "" {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read settings: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints.
func (s *Settings) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}
