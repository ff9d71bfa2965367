package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".hakimeet"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Environment variables consulted when a context leaves a field empty.
const (
	EnvAppID      = "DOUBAO_VOICE_APP_ID"
	EnvAccessKey  = "DOUBAO_VOICE_ACCESS_KEY"
	EnvAppKey     = "DOUBAO_VOICE_APP_KEY"
	EnvResourceID = "DOUBAO_VOICE_RESOURCE_ID"
	EnvWSURL      = "DOUBAO_VOICE_WS_URL"
	EnvMaxRetries = "DOUBAO_VOICE_MAX_RETRIES"
)

// Config represents the main configuration structure for a CLI app
type Config struct {
	// AppName is the application name (e.g., "hakimeet")
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// Context is one named set of voice service credentials and connection
// settings.
type Context struct {
	// Name is the context name
	Name string `yaml:"name"`

	// Client contains realtime dialogue credentials
	Client *ClientCredentials `yaml:"client,omitempty"`

	// WSURL is the websocket base URL (optional, uses default if empty)
	WSURL string `yaml:"ws_url,omitempty"`

	// ResourceID overrides X-Api-Resource-Id (optional)
	ResourceID string `yaml:"resource_id,omitempty"`

	// Timeout is the handshake timeout in seconds (optional)
	Timeout int `yaml:"timeout,omitempty"`

	// MaxRetries is the number of connection attempts (optional)
	MaxRetries int `yaml:"max_retries,omitempty"`

	// Speaker is the TTS voice (optional)
	Speaker string `yaml:"speaker,omitempty"`

	// Extra stores application-specific settings
	Extra map[string]string `yaml:"extra,omitempty"`
}

// ClientCredentials contains credentials for the realtime dialogue API
type ClientCredentials struct {
	// AppID is the application ID
	AppID string `yaml:"app_id"`

	// AccessKey is sent as X-Api-Access-Key
	AccessKey string `yaml:"access_key"`

	// AppKey overrides the fixed X-Api-App-Key (optional)
	AppKey string `yaml:"app_key,omitempty"`
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	var configPath string

	if customPath != "" {
		configPath = customPath
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}

	cfg.AppName = appName
	cfg.configPath = configPath

	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddContext adds a new context
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// GetCurrentContext returns the current context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}
	return c.GetContext(c.CurrentContext)
}

// ResolveContext returns the context by name, or current context if name is empty
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		return c.GetCurrentContext()
	}
	return c.GetContext(name)
}

// ResolveContextWithEnv is ResolveContext with environment fallbacks.
//
// When no context is selected and DOUBAO_VOICE_APP_ID is set, an unnamed
// context is built from the environment alone.
func (c *Config) ResolveContextWithEnv(name string) (*Context, error) {
	ctx, err := c.ResolveContext(name)
	if err != nil {
		if name != "" || os.Getenv(EnvAppID) == "" {
			return nil, err
		}
		ctx = &Context{Name: "env"}
	} else {
		copied := *ctx
		ctx = &copied
	}
	ctx.ApplyEnv(os.Getenv)
	return ctx, nil
}

// ApplyEnv fills empty fields from the DOUBAO_VOICE_* variables.
func (ctx *Context) ApplyEnv(getenv func(string) string) {
	if ctx.Client == nil {
		ctx.Client = &ClientCredentials{}
	} else {
		copied := *ctx.Client
		ctx.Client = &copied
	}
	setIfEmpty(&ctx.Client.AppID, getenv(EnvAppID))
	setIfEmpty(&ctx.Client.AccessKey, getenv(EnvAccessKey))
	setIfEmpty(&ctx.Client.AppKey, getenv(EnvAppKey))
	setIfEmpty(&ctx.ResourceID, getenv(EnvResourceID))

	// The environment carries the full dialogue endpoint; contexts store the base.
	if ctx.WSURL == "" {
		if u := getenv(EnvWSURL); u != "" {
			ctx.WSURL = strings.TrimSuffix(u, "/api/v3/realtime/dialogue")
		}
	}
	if ctx.MaxRetries == 0 {
		if n, err := strconv.Atoi(getenv(EnvMaxRetries)); err == nil && n > 0 {
			ctx.MaxRetries = n
		}
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// ListContexts returns all context names
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	return names
}

// GetExtra returns an extra value for the context
func (ctx *Context) GetExtra(key string) string {
	if ctx.Extra == nil {
		return ""
	}
	return ctx.Extra[key]
}

// SetExtra sets an extra value for the context
func (ctx *Context) SetExtra(key, value string) {
	if ctx.Extra == nil {
		ctx.Extra = make(map[string]string)
	}
	ctx.Extra[key] = value
}

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
