package actionlib

import (
	"context"
	"fmt"

	"github.com/molginc/actionlib/policy"
	"github.com/molginc/actionlib/service/messaging"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from YAML or JSON. The zero-value is useful – all fields
// inherit their package defaults.
type Config struct {
	Messaging MessagingConfig `json:"messaging" yaml:"messaging"`

	// StatusIntervalMs overrides the periodic status broadcast interval.
	StatusIntervalMs int `json:"statusIntervalMs,omitempty" yaml:"statusIntervalMs,omitempty"`

	// RetentionMs overrides how long terminal goals stay queryable.
	RetentionMs int `json:"retentionMs,omitempty" yaml:"retentionMs,omitempty"`

	// IdleWaitMs overrides the execution loop's idle poll interval.
	IdleWaitMs int `json:"idleWaitMs,omitempty" yaml:"idleWaitMs,omitempty"`

	// Policy is the declarative admission policy applied at ingestion.
	Policy *policy.Config `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// MessagingConfig selects the queue vendor backing goal submission, cancel
// requests, events and the goal registry, along with the vendor tuning knobs.
type MessagingConfig = messaging.QueueConfig

// DefaultConfig returns a Config populated with the same defaults the
// constructors apply. Callers may modify the returned struct before passing
// it to New via WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Messaging: MessagingConfig{Vendor: messaging.VendorMemory},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Messaging.Vendor {
	case messaging.VendorMemory:
	case messaging.VendorFS:
		if c.Messaging.BaseURL == "" {
			return fmt.Errorf("messaging.baseURL is required for the fs vendor")
		}
	default:
		return fmt.Errorf("unsupported messaging vendor: %q", c.Messaging.Vendor)
	}
	if c.StatusIntervalMs < 0 {
		return fmt.Errorf("statusIntervalMs must be >= 0")
	}
	if c.RetentionMs < 0 {
		return fmt.Errorf("retentionMs must be >= 0")
	}
	if c.IdleWaitMs < 0 {
		return fmt.Errorf("idleWaitMs must be >= 0")
	}
	return nil
}

// LoadConfig reads a YAML (or JSON) configuration document from the supplied
// afs URL, e.g. file:///etc/actionlib/config.yaml or mem://localhost/cfg.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
