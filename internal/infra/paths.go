package infra

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "autores"

// HomeEnv overrides every per-user directory with a single root.
const HomeEnv = "AUTORES_HOME"

// Paths holds the per-user file locations.
type Paths struct {
	DataDir      string // Registry and logs
	ConfigDir    string // Automation config
	ConfigPath   string // Default automation config file
	LogPath      string // Daemon log
	ErrorLogPath string // Daemon error log
	RegistryPath string // Daemon registry file
}

// DetectPaths resolves the per-user locations for the current platform.
//
//	Windows: %APPDATA%\autores (config), %LOCALAPPDATA%\autores (data)
//	macOS:   ~/Library/Application Support/autores (both)
//	Linux:   $XDG_CONFIG_HOME/autores (config), $XDG_STATE_HOME/autores (data)
func DetectPaths() *Paths {
	if root := os.Getenv(HomeEnv); root != "" {
		return PathsFor(root, root)
	}

	home, _ := os.UserHomeDir()
	configBase, err := os.UserConfigDir()
	if err != nil {
		configBase = filepath.Join(home, ".config")
	}

	var dataBase string
	switch runtime.GOOS {
	case "windows":
		dataBase, err = os.UserCacheDir() // %LOCALAPPDATA%
		if err != nil {
			dataBase = configBase
		}
	case "darwin":
		dataBase = configBase
	default:
		dataBase = os.Getenv("XDG_STATE_HOME")
		if dataBase == "" {
			dataBase = filepath.Join(home, ".local", "state")
		}
	}

	return PathsFor(filepath.Join(configBase, AppName), filepath.Join(dataBase, AppName))
}

// PathsFor builds Paths from explicit config and data directories.
func PathsFor(configDir, dataDir string) *Paths {
	return &Paths{
		DataDir:      dataDir,
		ConfigDir:    configDir,
		ConfigPath:   filepath.Join(configDir, "config.json"),
		LogPath:      filepath.Join(dataDir, AppName+".log"),
		ErrorLogPath: filepath.Join(dataDir, AppName+".error.log"),
		RegistryPath: filepath.Join(dataDir, RegistryFileName),
	}
}

// EnsureDirs creates the config and data directories.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.ConfigDir, p.DataDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}
