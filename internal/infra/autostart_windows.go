package infra

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

const runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

// RegistryAutostart implements domain.AutostartManager with a value under
// the current user's Run key.
type RegistryAutostart struct {
	root      registry.Key
	keyPath   string
	valueName string
}

// NewAutostart returns the Run-key autostart manager.
func NewAutostart(*Paths) *RegistryAutostart {
	return &RegistryAutostart{
		root:      registry.CURRENT_USER,
		keyPath:   runKeyPath,
		valueName: AppName,
	}
}

func commandLine(execPath string) string {
	return fmt.Sprintf(`"%s" start`, execPath)
}

// Install writes the Run value.
func (a *RegistryAutostart) Install(execPath string) error {
	key, _, err := registry.CreateKey(a.root, a.keyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to open Run key: %w", err)
	}
	defer key.Close()
	return key.SetStringValue(a.valueName, commandLine(execPath))
}

// Uninstall deletes the Run value.
func (a *RegistryAutostart) Uninstall() error {
	key, err := registry.OpenKey(a.root, a.keyPath, registry.SET_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return err
	}
	defer key.Close()
	if err := key.DeleteValue(a.valueName); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return err
	}
	return nil
}

func (a *RegistryAutostart) current() (string, bool) {
	key, err := registry.OpenKey(a.root, a.keyPath, registry.QUERY_VALUE)
	if err != nil {
		return "", false
	}
	defer key.Close()
	value, _, err := key.GetStringValue(a.valueName)
	if err != nil {
		return "", false
	}
	return value, true
}

// IsInstalled checks if the Run value exists.
func (a *RegistryAutostart) IsInstalled() bool {
	_, ok := a.current()
	return ok
}

// NeedsUpdate reports whether the Run value points at a different binary.
func (a *RegistryAutostart) NeedsUpdate(execPath string) bool {
	value, ok := a.current()
	return ok && value != commandLine(execPath)
}

// Location returns the registry value path.
func (a *RegistryAutostart) Location() string {
	return `HKCU\` + a.keyPath + `\` + a.valueName
}

// Ensure RegistryAutostart implements domain.AutostartManager.
var _ domain.AutostartManager = (*RegistryAutostart)(nil)
