package cli

import (
	"os"
	"path/filepath"
	"time"
)

// Paths provides access to the per-app directory layout under ~/.hakimeet.
type Paths struct {
	// AppName is the application name
	AppName string

	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base directory (~/.hakimeet)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.hakimeet/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.hakimeet/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// LogDir returns the log directory (~/.hakimeet/<app>/logs)
func (p *Paths) LogDir() string {
	return filepath.Join(p.AppDir(), "logs")
}

// RecordingsDir returns where reply audio is saved (~/.hakimeet/<app>/recordings)
func (p *Paths) RecordingsDir() string {
	return filepath.Join(p.AppDir(), "recordings")
}

// LogPath returns a path within the log directory
func (p *Paths) LogPath(name string) string {
	return filepath.Join(p.LogDir(), name)
}

// RecordingPath returns the PCM file for a dialogue started at t.
func (p *Paths) RecordingPath(t time.Time) string {
	return filepath.Join(p.RecordingsDir(), t.Format("20060102-150405")+".pcm")
}

// OpenLogFile creates the log directory and opens name for appending.
func (p *Paths) OpenLogFile(name string) (*os.File, error) {
	if err := os.MkdirAll(p.LogDir(), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(p.LogPath(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// EnsureRecordingsDir creates the recordings directory if it doesn't exist
func (p *Paths) EnsureRecordingsDir() error {
	return os.MkdirAll(p.RecordingsDir(), 0755)
}
