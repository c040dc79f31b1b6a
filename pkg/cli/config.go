package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig represents ~/.cloudsathi/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile represents a single named configuration profile.
type Profile struct {
	APIURL  string `yaml:"api-url,omitempty"`
	Token   string `yaml:"token,omitempty"`
	Output  string `yaml:"output,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

// profileKeys are the keys accepted by `config get` and `config set`.
var profileKeys = []string{"api-url", "token", "output", "timeout"}

// Get returns the value stored under key.
func (p Profile) Get(key string) (string, error) {
	switch key {
	case "api-url":
		return p.APIURL, nil
	case "token":
		return p.Token, nil
	case "output":
		return p.Output, nil
	case "timeout":
		return p.Timeout, nil
	default:
		return "", fmt.Errorf("unknown config key %q (valid: %v)", key, profileKeys)
	}
}

// Set validates value and stores it under key.
func (p *Profile) Set(key, value string) error {
	switch key {
	case "api-url":
		if err := validateHostURL(value); err != nil {
			return err
		}
		p.APIURL = value
	case "token":
		p.Token = value
	case "output":
		if err := validateOutputFormat(value); err != nil {
			return err
		}
		p.Output = value
	case "timeout":
		if _, err := parseTimeout(value); err != nil {
			return err
		}
		p.Timeout = value
	default:
		return fmt.Errorf("unknown config key %q (valid: %v)", key, profileKeys)
	}
	return nil
}

// newUserConfig returns an empty config with a default profile selected.
func newUserConfig() *UserConfig {
	return &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
}

// ActiveProfile returns the profile named by override, or the current profile.
// An unknown override is an error; an unknown current profile yields an
// empty Profile.
func (c *UserConfig) ActiveProfile(override string) (Profile, error) {
	if override != "" {
		p, ok := c.Profiles[override]
		if !ok {
			return Profile{}, fmt.Errorf("profile %q not found", override)
		}
		return p, nil
	}
	return c.Profiles[c.CurrentProfile], nil
}

// ActiveProfileName returns the profile name that ActiveProfile resolves.
func (c *UserConfig) ActiveProfileName(override string) string {
	if override != "" {
		return override
	}
	if c.CurrentProfile == "" {
		return "default"
	}
	return c.CurrentProfile
}

// ConfigDir returns the path to ~/.cloudsathi/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cloudsathi")
}

// ConfigPath returns the path to ~/.cloudsathi/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.cloudsathi/config.yaml.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return &cfg, nil
}

// loadOrNewUserConfig returns the saved config, or an empty one when the
// file does not exist yet.
func loadOrNewUserConfig() (*UserConfig, error) {
	cfg, err := LoadUserConfig()
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(ConfigPath()); os.IsNotExist(statErr) {
		return newUserConfig(), nil
	}
	return nil, err
}

// SaveUserConfig writes ~/.cloudsathi/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}
