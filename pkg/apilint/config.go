package apilint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds per-rule severity overrides loaded from an .apilint.yaml file.
type Config struct {
	Rules map[string]string `yaml:"rules"` // ruleID → "off"/"error"/"warning"/"info"
}

// LoadConfig reads and parses an .apilint.yaml configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by the caller
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for id, sev := range cfg.Rules {
		switch Severity(sev) {
		case SeverityError, SeverityWarning, SeverityInfo, "off":
		default:
			return nil, fmt.Errorf("config %s: rule %s: unknown severity %q", path, id, sev)
		}
	}
	return &cfg, nil
}

// effectiveSeverity returns the severity for r, or "" when the rule is off.
func effectiveSeverity(cfg *Config, r Rule) Severity {
	if cfg != nil {
		if override, ok := cfg.Rules[r.ID()]; ok {
			if override == "off" {
				return ""
			}
			return Severity(override)
		}
	}
	return r.DefaultSeverity()
}
