package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gyara/changeup/internal/logger"
	"github.com/spf13/viper"
)

// DefaultBusName is the well-known D-Bus name of the daemon.
const DefaultBusName = "moe.gyara.changeup"

// Settings configure the daemon process itself. The rule file is separate
// and reloadable; settings are read once at startup.
type Settings struct {
	LogLevel      string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	PrettyLogs    bool   `mapstructure:"pretty_logs" yaml:"pretty_logs" json:"pretty_logs"`
	RulesPath     string `mapstructure:"rules" yaml:"rules" json:"rules"`
	Watch         bool   `mapstructure:"watch" yaml:"watch" json:"watch"`
	HTTPPort      int    `mapstructure:"http_port" yaml:"http_port" json:"http_port"`
	BusName       string `mapstructure:"bus_name" yaml:"bus_name" json:"bus_name"`
	ClientCommand string `mapstructure:"client_command" yaml:"client_command" json:"client_command"`
	X11Fallback   bool   `mapstructure:"x11_fallback" yaml:"x11_fallback" json:"x11_fallback"`
}

// DefaultSettingsPath returns $XDG_CONFIG_HOME/changeup/changeupd.yaml.
func DefaultSettingsPath() string {
	return filepath.Join(filepath.Dir(DefaultPath()), "changeupd.yaml")
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("pretty_logs", false)
	v.SetDefault("rules", DefaultPath())
	v.SetDefault("watch", true)
	v.SetDefault("http_port", 0)
	v.SetDefault("bus_name", DefaultBusName)
	v.SetDefault("client_command", "changeup")
	v.SetDefault("x11_fallback", false)
}

// LoadSettings reads the settings file (optional) plus CHANGEUP_* env vars
// into v and decodes the result. Flags must already be bound on v.
func LoadSettings(v *viper.Viper, file string) (*Settings, error) {
	SetDefaults(v)
	v.SetEnvPrefix("CHANGEUP")
	v.AutomaticEnv()

	if file == "" {
		file = DefaultSettingsPath()
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read settings %s: %w", file, err)
		}
		logger.WithComponent("config").Debug().
			Str("path", file).
			Msg("Settings file not found, using defaults")
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if s.RulesPath == "" {
		s.RulesPath = DefaultPath()
	}
	if s.BusName == "" {
		s.BusName = DefaultBusName
	}
	if abs, err := filepath.Abs(os.ExpandEnv(s.RulesPath)); err == nil {
		s.RulesPath = abs
	}
	return &s, nil
}
