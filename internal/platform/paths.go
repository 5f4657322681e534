// Package platform resolves per-OS locations for taskflow's config, database and logs.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "taskflow"

// Paths holds the resolved file locations for one app name.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogPath    string
}

// Options adjusts path resolution.
type Options struct {
	AppName string
	// DevMode suffixes the app name so development runs never touch real data.
	DevMode bool
}

// DefaultPaths returns the paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{})
}

// DefaultPathsWithOptions resolves paths from the current user's environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	switch runtime.GOOS {
	case "linux":
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", homeErr)
		}
		dataDir = filepath.Join(home, ".local", "share")
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	env := make(map[string]string, 4)
	for _, key := range []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "APPDATA", "LOCALAPPDATA"} {
		env[key] = os.Getenv(key)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// PathsFor resolves paths for goos given explicit environment and base directories.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase, dataBase := baseDirs(goos, env, userConfigDir, userDataDir)
	appDataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    appDataDir,
		DBPath:     filepath.Join(appDataDir, appName+".db"),
		LogPath:    filepath.Join(appDataDir, "logs", appName+".log"),
	}, nil
}

// baseDirs applies the platform's environment overrides to the fallback directories.
func baseDirs(goos string, env map[string]string, configBase, dataBase string) (string, string) {
	var configKey, dataKey string
	switch goos {
	case "linux":
		configKey, dataKey = "XDG_CONFIG_HOME", "XDG_DATA_HOME"
	case "windows":
		configKey, dataKey = "APPDATA", "LOCALAPPDATA"
	default:
		// macOS and others keep the os.UserConfigDir defaults.
		return configBase, dataBase
	}
	if v := env[configKey]; v != "" {
		configBase = v
	}
	if v := env[dataKey]; v != "" {
		dataBase = v
	}
	return configBase, dataBase
}
