package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"dicecup/internal/dice"
	"dicecup/internal/notation"
)

// Config models dicecup.yml.
type Config struct {
	Workspace struct {
		ID string `yaml:"id"`
	} `yaml:"workspace"`
	Expressions struct {
		Catalog map[string]ExpressionPreset `yaml:"catalog"`
	} `yaml:"expressions"`
	Rolls struct {
		MaxSampleTrials int `yaml:"max_sample_trials"`
	} `yaml:"rolls"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type ExpressionPreset struct {
	Notation    string `yaml:"notation"`
	Description string `yaml:"description"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with dicecup config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure. Catalog
// notations are parsed so a broken preset fails at load time, not
// the first time someone rolls it.
func (c *Config) Validate() error {
	if c.Workspace.ID == "" {
		return fmt.Errorf("config.workspace.id is required")
	}
	for name, preset := range c.Expressions.Catalog {
		if name == "" {
			return fmt.Errorf("config.expressions.catalog contains empty name")
		}
		if preset.Notation == "" {
			return fmt.Errorf("expression %s has empty notation", name)
		}
		if _, err := notation.Parse(dice.DefaultSource(), preset.Notation); err != nil {
			return fmt.Errorf("expression %s: %w", name, err)
		}
	}
	if c.Rolls.MaxSampleTrials < 0 {
		return fmt.Errorf("config.rolls.max_sample_trials must not be negative")
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["owner"]; !ok {
			return fmt.Errorf("config.rbac.roles must include owner")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dicecup.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(workspaceID string) string {
	return fmt.Sprintf(defaultTemplate, workspaceID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a workspace.
func Default(workspaceID string) *Config {
	var cfg Config
	cfg.Workspace.ID = workspaceID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, workspaceID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `workspace:
  id: %s

expressions:
  catalog:
    attack:
      notation: D20
      description: "Plain d20 check"
    advantage:
      notation: 2D20KH1
      description: "Roll twice, keep the better"
    disadvantage:
      notation: 2D20KL1
      description: "Roll twice, keep the worse"
    ability-score:
      notation: 4D6DL1
      description: "Classic stat generation"
    fudge:
      notation: 4DF
      description: "Fate/Fudge check"
    fireball:
      notation: 8D6
      description: "Area damage"

rolls:
  max_sample_trials: 100000

rbac:
  roles:
    owner:
      description: "Full control of the workspace"
      permissions:
        - roll.execute
        - expression.read
        - expression.write
        - log.read
        - apikey.admin
    roller:
      description: "Can roll and read presets"
      permissions:
        - roll.execute
        - expression.read
        - log.read
`
