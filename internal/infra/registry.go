package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// RegistryFileName is the daemon registry file inside the data directory.
const RegistryFileName = "daemon.json"

// FileRegistry implements domain.DaemonRegistry using a JSON file.
type FileRegistry struct {
	path      string
	isRunning func(pid int) bool
}

// NewFileRegistry creates a registry in dataDir.
func NewFileRegistry(dataDir string) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(dataDir, RegistryFileName), IsRunning)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, isRunning func(pid int) bool) *FileRegistry {
	return &FileRegistry{path: path, isRunning: isRunning}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register records the running daemon.
func (r *FileRegistry) Register(info domain.DaemonInfo) error {
	if info.Version == 0 {
		info.Version = 1
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", err)
	}
	return r.atomicWrite(&info)
}

// Get returns the recorded daemon, or nil if none is registered.
func (r *FileRegistry) Get() (*domain.DaemonInfo, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var info domain.DaemonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt registry %s: %w", r.path, err)
	}
	return &info, nil
}

// IsAlive checks if the recorded daemon is running via PID.
func (r *FileRegistry) IsAlive() (bool, error) {
	info, err := r.Get()
	if err != nil {
		return false, err
	}
	if info == nil || info.PID == 0 {
		return false, nil // Not registered = not alive
	}
	return r.isRunning(info.PID), nil
}

// Clear removes the registry file. A missing file is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes registry to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(info *domain.DaemonInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileRegistry)(nil)
