package config

import (
	"os"
	"path/filepath"
)

const EnvPath = "IRON_BUTTON_CONFIG"

// ResolvePath picks the config file: flag, then IRON_BUTTON_CONFIG, then
// $XDG_CONFIG_HOME/iron-button/config.yml.
func ResolvePath(flagPath string) (string, error) {
	if flagPath != "" {
		return absolute(flagPath)
	}

	if envPath := os.Getenv(EnvPath); envPath != "" {
		return absolute(envPath)
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "iron-button", "config.yml"), nil
}

func absolute(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, path), nil
}
