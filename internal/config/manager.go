package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigDirName  = ".ga4revenue"
	ConfigFileName = "config.yaml"

	// Environment overrides
	EnvHome       = "GA4REVENUE_HOME"
	EnvSiteSecret = "GA4REVENUE_SITE_SECRET"
	EnvServerAddr = "GA4REVENUE_SERVER_ADDR"

	siteSecretBytes = 32
)

// LoadEnv reads .env.local and .env from the working directory when present.
// Variables already set in the environment win.
func LoadEnv() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

// GetConfigDir returns the path to the config directory (~/.ga4revenue, or
// $GA4REVENUE_HOME)
func GetConfigDir() (string, error) {
	if home := strings.TrimSpace(os.Getenv(EnvHome)); home != "" {
		return home, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ConfigDirName), nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetCacheDir returns the directory holding report cache databases
func GetCacheDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cache"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	// user read/write/execute only
	return os.MkdirAll(configDir, 0700)
}

// LoadConfig reads the global configuration. A missing file yields Default().
// Environment overrides are applied on top.
func LoadConfig() (*AppConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		now := time.Now()
		config.CreatedAt = now
		config.UpdatedAt = now
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// Unmarshal over the defaults so absent keys keep them
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyDefaults()
	config.applyEnv()
	return config, nil
}

func (c *AppConfig) applyEnv() {
	if secret := strings.TrimSpace(os.Getenv(EnvSiteSecret)); secret != "" {
		c.fileSiteSecret = c.SiteSecret
		c.SiteSecret = secret
		c.secretFromEnv = true
	}
	if addr := strings.TrimSpace(os.Getenv(EnvServerAddr)); addr != "" {
		c.Server.Addr = addr
	}
}

// SaveConfig writes the global configuration. A site secret supplied through
// the environment is not written to disk.
func SaveConfig(config *AppConfig) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	config.UpdatedAt = time.Now()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = config.UpdatedAt
	}

	onDisk := *config
	if config.secretFromEnv {
		onDisk.SiteSecret = config.fileSiteSecret
	}

	data, err := yaml.Marshal(&onDisk)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// user read/write only
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnsureSiteSecret generates and saves a site secret when none is configured.
// It reports whether a new secret was created.
func EnsureSiteSecret(config *AppConfig) (bool, error) {
	if config.SiteSecret != "" {
		return false, nil
	}

	secret, err := GenerateSiteSecret()
	if err != nil {
		return false, err
	}
	config.SiteSecret = secret

	if err := SaveConfig(config); err != nil {
		return false, fmt.Errorf("failed to save config: %w", err)
	}
	return true, nil
}

// GenerateSiteSecret returns a random base64 secret.
func GenerateSiteSecret() (string, error) {
	buf := make([]byte, siteSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate site secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// SetActivePreset sets the active preset name
func SetActivePreset(presetName string) error {
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	config.ActivePreset = presetName

	if err := SaveConfig(config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// GetActivePreset returns the currently active preset name
func GetActivePreset() (string, error) {
	config, err := LoadConfig()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	return config.ActivePreset, nil
}
