package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for a migration run.
type Config struct {
	Source         SourceConfig         `mapstructure:"source"`
	Workspace      WorkspaceConfig      `mapstructure:"workspace"`
	Transcoder     TranscoderConfig     `mapstructure:"transcoder"`
	Customizations CustomizationsConfig `mapstructure:"customizations"`
	Log            LogConfig            `mapstructure:"log"`
}

// SourceConfig describes the EasyRedmine database and its file storage.
type SourceConfig struct {
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
	FilesDir      string `mapstructure:"files_dir"`      // Redmine "files" directory holding attachment payloads
	ContainerType string `mapstructure:"container_type"` // attachment container type of knowledge-base stories
}

// WorkspaceConfig holds the working directory shared by all stages.
type WorkspaceConfig struct {
	Dir string `mapstructure:"dir"`
}

// TranscoderConfig configures the external markup transcoder.
type TranscoderConfig struct {
	Command       string `mapstructure:"command"`
	SourceDialect string `mapstructure:"source_dialect"` // e.g. "textile", "markdown", "html"
}

// CustomizationsConfig points at the optional customization YAML file.
type CustomizationsConfig struct {
	File string `mapstructure:"file"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // e.g., "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // e.g., "json", "console"
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.driver", "mysql")
	v.SetDefault("source.dsn", "")
	v.SetDefault("source.files_dir", "files")
	v.SetDefault("source.container_type", "EasyKnowledgeStory")
	v.SetDefault("workspace.dir", "workspace")
	v.SetDefault("transcoder.command", "pandoc")
	v.SetDefault("transcoder.source_dialect", "html")
	v.SetDefault("customizations.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig reads configuration from file and environment variables.
// An explicit configFile takes precedence over the search paths.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	// .env is optional; real environment variables still win.
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/kbmigrate/")
		v.AddConfigPath("$HOME/.kbmigrate")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return nil, err
		}
		// Config file not found; proceed with defaults and env vars
	}

	v.SetEnvPrefix("KBMIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
