// Package config loads tool-wide defaults through Viper: the provisional
// block size to use before a superblock is decoded, verbosity, and the
// default container path.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the defaults this tool reads once at startup.
type Config struct {
	ProvisionalBlockSize uint32 `mapstructure:"provisional_block_size"`
	Verbose              bool   `mapstructure:"verbose"`
	Color                bool   `mapstructure:"color"`
	DefaultImagePath     string `mapstructure:"default_image_path"`
}

// Load reads apfs-inspect-config.yaml from the current directory,
// $HOME/.apfs-inspect, or /etc/apfs-inspect, falling back to built-in
// defaults for anything not set. explicitPath, if non-empty, is the only
// file read (the search directories are then skipped) and is an error to
// be missing.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("apfs-inspect-config")
	v.SetConfigType("yaml")

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.apfs-inspect")
		v.AddConfigPath("/etc/apfs-inspect")
	}

	v.SetDefault("provisional_block_size", 4096)
	v.SetDefault("verbose", false)
	v.SetDefault("color", true)
	v.SetDefault("default_image_path", "")

	v.SetEnvPrefix("APFS_INSPECT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}
