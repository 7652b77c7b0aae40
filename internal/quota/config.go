// Package quota enforces the instance plan: resource limits, feature flags
// and request rate limits.
package quota

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Unlimited disables a limit.
const Unlimited = -1

type Limits struct {
	MaxUsers            int           `yaml:"max_users"`
	MaxNotes            int           `yaml:"max_notes"`
	MaxNotesPerUser     int           `yaml:"max_notes_per_user"`
	MaxTemplates        int           `yaml:"max_templates"`
	MaxTemplatesPerUser int           `yaml:"max_templates_per_user"`
	MaxWebhooks         int           `yaml:"max_webhooks"`
	MaxWebhooksPerUser  int           `yaml:"max_webhooks_per_user"`
	MaxAPIKeys          int           `yaml:"max_api_keys"`
	MaxAPIKeysPerUser   int           `yaml:"max_api_keys_per_user"`
	RateLimitRequests   int           `yaml:"rate_limit_requests"`
	RateLimitWindow     time.Duration `yaml:"rate_limit_window"`
}

type Feature string

const (
	FeatureWebhooks  Feature = "webhooks"
	FeatureTemplates Feature = "templates"
	FeatureSharing   Feature = "sharing"
	FeatureAPIKeys   Feature = "apiKeys"
)

type Features struct {
	Webhooks  bool `yaml:"webhooks"`
	Templates bool `yaml:"templates"`
	Sharing   bool `yaml:"sharing"`
	APIKeys   bool `yaml:"api_keys"`
}

func (f Features) Enabled(feature Feature) bool {
	switch feature {
	case FeatureWebhooks:
		return f.Webhooks
	case FeatureTemplates:
		return f.Templates
	case FeatureSharing:
		return f.Sharing
	case FeatureAPIKeys:
		return f.APIKeys
	}
	return false
}

// InstanceConfig is the plan this instance runs under.
type InstanceConfig struct {
	InstanceID   string   `yaml:"instance_id"`
	InstanceName string   `yaml:"instance_name"`
	Plan         string   `yaml:"plan"`
	Limits       Limits   `yaml:"limits"`
	Features     Features `yaml:"features"`
}

var Plans = map[string]Limits{
	"self_hosted": {
		MaxUsers: Unlimited, MaxNotes: Unlimited, MaxNotesPerUser: Unlimited,
		MaxTemplates: Unlimited, MaxTemplatesPerUser: Unlimited,
		MaxWebhooks: Unlimited, MaxWebhooksPerUser: Unlimited,
		MaxAPIKeys: Unlimited, MaxAPIKeysPerUser: Unlimited,
		RateLimitRequests: 1000, RateLimitWindow: time.Minute,
	},
	"basic": {
		MaxUsers: 5, MaxNotes: 1000, MaxNotesPerUser: 200,
		MaxTemplates: 50, MaxTemplatesPerUser: 10,
		MaxWebhooks: 3, MaxWebhooksPerUser: 2,
		MaxAPIKeys: 5, MaxAPIKeysPerUser: 1,
		RateLimitRequests: 100, RateLimitWindow: time.Minute,
	},
	"pro": {
		MaxUsers: 25, MaxNotes: 10000, MaxNotesPerUser: 1000,
		MaxTemplates: 200, MaxTemplatesPerUser: 50,
		MaxWebhooks: 10, MaxWebhooksPerUser: 5,
		MaxAPIKeys: 25, MaxAPIKeysPerUser: 5,
		RateLimitRequests: 300, RateLimitWindow: time.Minute,
	},
	"enterprise": {
		MaxUsers: Unlimited, MaxNotes: Unlimited, MaxNotesPerUser: Unlimited,
		MaxTemplates: Unlimited, MaxTemplatesPerUser: Unlimited,
		MaxWebhooks: Unlimited, MaxWebhooksPerUser: Unlimited,
		MaxAPIKeys: Unlimited, MaxAPIKeysPerUser: Unlimited,
		RateLimitRequests: 1000, RateLimitWindow: time.Minute,
	},
}

// ForPlan returns the default configuration of a named plan with every
// feature enabled.
func ForPlan(plan string) (*InstanceConfig, error) {
	limits, ok := Plans[plan]
	if !ok {
		return nil, fmt.Errorf("unknown plan %q", plan)
	}
	return &InstanceConfig{
		InstanceID:   "self-hosted",
		InstanceName: "KeepIt",
		Plan:         plan,
		Limits:       limits,
		Features:     Features{Webhooks: true, Templates: true, Sharing: true, APIKeys: true},
	}, nil
}

// Load builds the config for plan and, when path is set, overlays the
// yaml file on top of it. A plan named in the file replaces the defaults
// before the rest of the file is applied.
func Load(plan, path string) (*InstanceConfig, error) {
	if path == "" {
		return ForPlan(plan)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instance config: %w", err)
	}

	var head struct {
		Plan string `yaml:"plan"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse instance config: %w", err)
	}
	if head.Plan != "" {
		plan = head.Plan
	}
	cfg, err := ForPlan(plan)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse instance config: %w", err)
	}
	return cfg, nil
}
