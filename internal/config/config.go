// Package config loads and validates the cycle configuration.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chaoskit/chaoskit/internal/llm"
)

// Config drives a full chaos engineering cycle. Every field can be set
// from a YAML file; the CLI layers flag overrides on top.
type Config struct {
	// KubeContext names the kubeconfig context the cycle runs against.
	KubeContext string `yaml:"kube_context"`
	// Kubeconfig overrides the default kubeconfig loading rules.
	Kubeconfig string `yaml:"kubeconfig"`
	// ServiceAccount runs the inspection pods when set.
	ServiceAccount string `yaml:"service_account"`
	// Namespace is where the target system's workloads live.
	Namespace string `yaml:"namespace" validate:"required"`
	// ChaosNamespace is where Chaos Mesh workflows are created.
	ChaosNamespace string `yaml:"chaos_namespace" validate:"required"`
	// Project labels every deployed resource (project=<name>) and
	// scopes cleanup.
	Project string `yaml:"project" validate:"required,hostname_rfc1123"`
	// WorkDir is the root for all persisted cycle artifacts.
	WorkDir string `yaml:"work_dir" validate:"required"`
	// HostRoot is the node-visible path of WorkDir, mounted into
	// workflow task pods. Defaults to WorkDir.
	HostRoot string `yaml:"host_root"`

	CleanBefore   bool `yaml:"clean_before"`
	CleanAfter    bool `yaml:"clean_after"`
	NewDeployment bool `yaml:"new_deployment"`

	// MaxSteadyStates caps how many steady states the hypothesis phase
	// may define.
	MaxSteadyStates int `yaml:"max_steady_states" validate:"gte=1"`
	// MaxRetries caps retries independently for each phase, and the
	// number of improvement iterations.
	MaxRetries int `yaml:"max_retries" validate:"gte=1"`

	Model llm.ProviderConfig `yaml:"model"`
}

// Default returns the configuration used when no file or flags are given.
func Default() Config {
	return Config{
		Namespace:       "default",
		NewDeployment:   true,
		ChaosNamespace:  "chaos-mesh",
		Project:         "chaoskit",
		WorkDir:         "sandbox",
		MaxSteadyStates: 2,
		MaxRetries:      3,
		Model: llm.ProviderConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Temperature: 0,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path yields
// the defaults unvalidated so the CLI can still apply flag overrides
// before calling Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the fully assembled configuration, after file and
// flag overrides have been applied.
func (c *Config) Validate() error {
	if c.HostRoot == "" {
		c.HostRoot = c.WorkDir
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
