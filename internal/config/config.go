package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const appName = "trans-app"

// ServerConfig locates the translation gateway
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// WebSocketURL and APIURL override the URLs derived from Host and Port
	WebSocketURL string `json:"websocket_url,omitempty"`
	APIURL       string `json:"api_url,omitempty"`
}

// UserConfig holds the user's translation preferences
type UserConfig struct {
	SelectedLanguage   string `json:"selected_language"`
	SelectedTranslator string `json:"selected_translator"`
	TranslateKeyboard  string `json:"translate_keyboard"`
	CopyToClipboard    bool   `json:"copy_to_clipboard"`
}

// TimeoutConfig holds connection timing, in seconds
type TimeoutConfig struct {
	Connect              int `json:"connect_timeout_seconds"`
	Hello                int `json:"hello_timeout_seconds"`
	Request              int `json:"request_timeout_seconds"`
	Result               int `json:"result_timeout_seconds"`
	MonitorInterval      int `json:"monitor_interval_seconds"`
	ReconnectDelay       int `json:"reconnect_delay_seconds"`
	PingInterval         int `json:"ping_interval_seconds"`
	MaxReconnectAttempts int `json:"max_reconnect_attempts"`
}

// Config represents application configuration
type Config struct {
	Server   ServerConfig  `json:"server"`
	User     UserConfig    `json:"user"`
	Timeouts TimeoutConfig `json:"timeouts"`
	LogLevel string        `json:"log_level"` // debug, info, warn, error, none
	LogPath  string        `json:"-"`
	LockPath string        `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "linux":
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Application Support", appName)
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", appName)
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", appName)
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Logs", appName)
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		User: UserConfig{
			SelectedLanguage:   "ru",
			SelectedTranslator: "yandex",
			TranslateKeyboard:  "alt+shift+t",
			CopyToClipboard:    true,
		},
		Timeouts: DefaultTimeouts(),
		LogLevel: "info",
		LogPath:  filepath.Join(stateDir, appName+".log"),
		LockPath: filepath.Join(stateDir, appName+".lock"),
	}
}

// DefaultTimeouts returns the default connection timing
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		Connect:              10,
		Hello:                10,
		Request:              10,
		Result:               20,
		MonitorInterval:      10,
		ReconnectDelay:       5,
		PingInterval:         30,
		MaxReconnectAttempts: 3,
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	config.fillDefaults()
	return config, nil
}

// fillDefaults restores critical fields a config file left empty
func (c *Config) fillDefaults() {
	defaults := DefaultConfig()

	if strings.TrimSpace(c.Server.Host) == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port <= 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.User.SelectedLanguage == "" {
		c.User.SelectedLanguage = defaults.User.SelectedLanguage
	}
	if c.User.SelectedTranslator == "" {
		c.User.SelectedTranslator = defaults.User.SelectedTranslator
	}
	if strings.TrimSpace(c.User.TranslateKeyboard) == "" {
		c.User.TranslateKeyboard = defaults.User.TranslateKeyboard
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.LogPath == "" {
		c.LogPath = defaults.LogPath
	}
	if c.LockPath == "" {
		c.LockPath = defaults.LockPath
	}

	t, d := &c.Timeouts, defaults.Timeouts
	for _, f := range []struct {
		v   *int
		def int
	}{
		{&t.Connect, d.Connect},
		{&t.Hello, d.Hello},
		{&t.Request, d.Request},
		{&t.Result, d.Result},
		{&t.MonitorInterval, d.MonitorInterval},
		{&t.ReconnectDelay, d.ReconnectDelay},
		{&t.MaxReconnectAttempts, d.MaxReconnectAttempts},
	} {
		if *f.v <= 0 {
			*f.v = f.def
		}
	}
	// ping interval 0 disables keepalive
	if t.PingInterval < 0 {
		t.PingInterval = d.PingInterval
	}
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// write-then-rename so a watcher never sees a half-written file
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// ServerAddress returns host:port of the gateway
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// WebSocketURL returns the gateway's streaming endpoint
func (c *Config) WebSocketURL() string {
	if c.Server.WebSocketURL != "" {
		return c.Server.WebSocketURL
	}
	return "ws://" + c.ServerAddress() + "/ws"
}

// APIURL returns the gateway's API base, always with a trailing slash
func (c *Config) APIURL() string {
	url := c.Server.APIURL
	if url == "" {
		url = "http://" + c.ServerAddress() + "/api/v1/"
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}

// Seconds converts a seconds field to a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Validate checks the user selection against the catalog
func (c *Config) Validate() error {
	var errs []error
	if _, ok := LookupLanguage(c.User.SelectedLanguage); !ok {
		errs = append(errs, fmt.Errorf("unknown language %q", c.User.SelectedLanguage))
	}
	if _, ok := LookupTranslator(c.User.SelectedTranslator); !ok {
		errs = append(errs, fmt.Errorf("unknown translator %q", c.User.SelectedTranslator))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

// envOverrides are read from the environment after the file
type envOverrides struct {
	ServerHost   string `envconfig:"TRANSAPP_SERVER_HOST"`
	ServerPort   int    `envconfig:"TRANSAPP_SERVER_PORT"`
	WebSocketURL string `envconfig:"TRANSAPP_WEBSOCKET_URL"`
	APIURL       string `envconfig:"TRANSAPP_API_URL"`
	LogLevel     string `envconfig:"TRANSAPP_LOG_LEVEL"`
	Language     string `envconfig:"TRANSAPP_LANGUAGE"`
	Translator   string `envconfig:"TRANSAPP_TRANSLATOR"`
}

// ApplyEnv overrides fields from TRANSAPP_* environment variables. Unset
// variables leave the field alone.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if env.ServerHost != "" {
		c.Server.Host = env.ServerHost
	}
	if env.ServerPort != 0 {
		c.Server.Port = env.ServerPort
	}
	if env.WebSocketURL != "" {
		c.Server.WebSocketURL = env.WebSocketURL
	}
	if env.APIURL != "" {
		c.Server.APIURL = env.APIURL
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if env.Language != "" {
		c.User.SelectedLanguage = env.Language
	}
	if env.Translator != "" {
		c.User.SelectedTranslator = env.Translator
	}
	return nil
}
