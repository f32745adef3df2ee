//go:build !windows

package infra

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// AutostartLabel identifies the LaunchAgent and names the desktop entry.
const AutostartLabel = "io.github.elitegoblin.autores"

// LaunchAgent plist template (runs as user at login)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>start</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Interactive</string>
</dict>
</plist>
`

// XDG autostart desktop entry template
const desktopEntryTemplate = `[Desktop Entry]
Type=Application
Name=autores
Comment=Per-application display automation
Exec={{quote .ExecutablePath}} start
Terminal=false
NoDisplay=true
X-GNOME-Autostart-enabled=true
`

type autostartFormat int

const (
	formatDesktopEntry autostartFormat = iota
	formatLaunchAgent
)

type entryConfig struct {
	Label          string
	ExecutablePath string
	LogPath        string
	ErrorLogPath   string
}

// FileAutostart implements domain.AutostartManager with a file in a
// per-user autostart directory.
type FileAutostart struct {
	format   autostartFormat
	dir      string
	path     string
	paths    *Paths
	runCmd   func(name string, args ...string) error
	template *template.Template
}

// NewAutostart returns the login-entry manager for the current platform.
func NewAutostart(paths *Paths) *FileAutostart {
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return newFileAutostart(formatLaunchAgent, filepath.Join(home, "Library/LaunchAgents"), paths)
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	return newFileAutostart(formatDesktopEntry, filepath.Join(configHome, "autostart"), paths)
}

func newFileAutostart(format autostartFormat, dir string, paths *Paths) *FileAutostart {
	a := &FileAutostart{
		format: format,
		dir:    dir,
		paths:  paths,
		runCmd: func(name string, args ...string) error { return exec.Command(name, args...).Run() },
	}

	funcs := template.FuncMap{"quote": quoteExec}
	switch format {
	case formatLaunchAgent:
		a.path = filepath.Join(dir, AutostartLabel+".plist")
		a.template = template.Must(template.New("plist").Parse(launchAgentTemplate))
	default:
		a.path = filepath.Join(dir, AppName+".desktop")
		a.template = template.Must(template.New("desktop").Funcs(funcs).Parse(desktopEntryTemplate))
	}
	return a
}

// quoteExec quotes a path for a desktop entry Exec key.
func quoteExec(path string) string {
	if !strings.ContainsAny(path, " \t\"\\$`") {
		return path
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(path) + `"`
}

// generate renders the entry for execPath.
func (a *FileAutostart) generate(execPath string) ([]byte, error) {
	config := entryConfig{
		Label:          AutostartLabel,
		ExecutablePath: execPath,
		LogPath:        a.paths.LogPath,
		ErrorLogPath:   a.paths.ErrorLogPath,
	}

	var buf bytes.Buffer
	if err := a.template.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to render autostart entry: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the entry and, for a LaunchAgent, loads it.
func (a *FileAutostart) Install(execPath string) error {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return err
	}

	content, err := a.generate(execPath)
	if err != nil {
		return err
	}

	if a.format == formatLaunchAgent {
		// Unload a previous version first (ignore errors if not loaded)
		_ = a.runCmd("launchctl", "unload", a.path)
	}
	if err := os.WriteFile(a.path, content, 0644); err != nil {
		return err
	}
	if a.format == formatLaunchAgent {
		return a.runCmd("launchctl", "load", a.path)
	}
	return nil
}

// Uninstall unloads and removes the entry.
func (a *FileAutostart) Uninstall() error {
	if a.format == formatLaunchAgent && a.IsInstalled() {
		_ = a.runCmd("launchctl", "unload", a.path)
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// IsInstalled checks if the entry file exists.
func (a *FileAutostart) IsInstalled() bool {
	_, err := os.Stat(a.path)
	return err == nil
}

// NeedsUpdate checks if the entry exists but has different content than expected.
func (a *FileAutostart) NeedsUpdate(execPath string) bool {
	if !a.IsInstalled() {
		return false // Doesn't exist, needs install not update
	}

	current, err := os.ReadFile(a.path)
	if err != nil {
		return true // Can't read, assume needs update
	}
	expected, err := a.generate(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

// Location returns the entry file path.
func (a *FileAutostart) Location() string {
	return a.path
}

// Ensure FileAutostart implements domain.AutostartManager.
var _ domain.AutostartManager = (*FileAutostart)(nil)
