// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port          int `mapstructure:"port"`
	CheckInterval int `mapstructure:"check_interval"` // seconds between update checks
	Forge         struct {
		BaseURL      string `mapstructure:"base_url"`
		Token        string `mapstructure:"token"`
		DefaultOwner string `mapstructure:"default_owner"`
	} `mapstructure:"forge"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Paths struct {
		Components string `mapstructure:"components"` // plugin module destination root
		Web        string `mapstructure:"web"`        // public web-asset root
		Templates  string `mapstructure:"templates"`  // shared template bundle root
		Brands     string `mapstructure:"brands"`     // brand icon directory
	} `mapstructure:"paths"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with a "FORGESTORE_" prefix.
	// e.g., FORGESTORE_FORGE_TOKEN will override the `forge.token` key.
	viper.SetEnvPrefix("FORGESTORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("check_interval", 7200)
	viper.SetDefault("forge.base_url", "https://git.onoffapi.com")
	viper.SetDefault("forge.token", "")
	viper.SetDefault("forge.default_owner", "")
	viper.SetDefault("database.path", "./forgestore.db")
	viper.SetDefault("paths.components", "./custom_components")
	viper.SetDefault("paths.web", "./www")
	viper.SetDefault("paths.templates", "./blueprints")
	viper.SetDefault("paths.brands", "./www/brands")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
