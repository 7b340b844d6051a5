// Package config loads stillsuit settings from viper and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/stillsuit/internal/common"
)

// DefaultDatabasePath is used when database.path is unset.
const DefaultDatabasePath = "~/.local/share/stillsuit/stillsuit.db"

var userHomeDir = os.UserHomeDir

// ExpandPath expands a leading ~ and $VARS in path. key names the setting
// the path came from and is reported when ~ cannot be resolved.
func ExpandPath(key, path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := userHomeDir()
		if err == nil && home == "" {
			err = fmt.Errorf("empty home directory")
		}
		if err != nil {
			return "", fmt.Errorf("%w: %s: cannot resolve %q: %v", common.ErrInvalidConfig, key, path, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}

	return os.ExpandEnv(path), nil
}

// pathSetting reads a path from viper, falling back to the environment
// variable env, and expands it.
func pathSetting(key, env string) (string, error) {
	if p := viper.GetString(key); p != "" {
		return ExpandPath(key, p)
	}
	if env == "" {
		return "", nil
	}
	return ExpandPath(env, os.Getenv(env))
}

// DatabasePath returns the expanded database.path, or the default location.
func DatabasePath() (string, error) {
	p := viper.GetString("database.path")
	if p == "" {
		p = DefaultDatabasePath
	}
	return ExpandPath("database.path", p)
}
