package commands

import (
	"github.com/spf13/cobra"

	"github.com/chaoskit/chaoskit/cmd/chaoskit/handlers"
	"github.com/chaoskit/chaoskit/internal/config"
)

// Run returns the command that executes one full chaos engineering
// cycle against the deploy bundle in the given directory.
//
// The bundle directory must contain a skaffold.yaml plus the manifests
// it references. Flags override the corresponding config file fields.
//
// Exit codes: 0 all steady states hold, 1 unrecoverable error,
// 2 retry budget exhausted, 3 cancelled.
func Run() *cobra.Command {
	var (
		configPath   string
		instructions string
	)
	overrides := config.Default()

	cmd := &cobra.Command{
		Use:   "run <bundle-dir>",
		Short: "Run a chaos engineering cycle",
		Long: `Run one full chaos engineering cycle.

The cycle deploys the bundle, derives steady states and a fault
scenario, executes a Chaos Mesh workflow, and on failing steady states
iteratively reconfigures the manifests and re-runs until they hold or
the retry budget is exhausted.

Examples:
  # Run against the sock-shop bundle with defaults
  chaoskit run ./sock-shop

  # Pin context and work dir, clean up afterwards
  chaoskit run ./sock-shop --context kind-chaos --work-dir ./sandbox/cycle1 --clean-after`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyChanged(cmd, &cfg, &overrides)
			if err := cfg.Validate(); err != nil {
				return err
			}
			code, err := handlers.Run(cmd.Context(), cfg, args[0], instructions)
			if err != nil {
				return err
			}
			if code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Free-form guidance for the cycle")
	cmd.Flags().StringVar(&overrides.KubeContext, "context", overrides.KubeContext, "Kubeconfig context")
	cmd.Flags().StringVar(&overrides.Namespace, "namespace", overrides.Namespace, "Namespace of the target system")
	cmd.Flags().StringVar(&overrides.ChaosNamespace, "chaos-namespace", overrides.ChaosNamespace, "Namespace for Chaos Mesh workflows")
	cmd.Flags().StringVar(&overrides.Project, "project", overrides.Project, "Project label applied to deployed resources")
	cmd.Flags().StringVar(&overrides.WorkDir, "work-dir", overrides.WorkDir, "Directory for cycle artifacts")
	cmd.Flags().StringVar(&overrides.HostRoot, "host-root", overrides.HostRoot, "Node-visible path of the work dir")
	cmd.Flags().BoolVar(&overrides.CleanBefore, "clean-before", overrides.CleanBefore, "Remove leftover cluster resources before the cycle")
	cmd.Flags().BoolVar(&overrides.CleanAfter, "clean-after", overrides.CleanAfter, "Remove deployed cluster resources after the cycle")
	cmd.Flags().BoolVar(&overrides.NewDeployment, "new-deployment", overrides.NewDeployment, "Treat the bundle as a fresh deployment")
	cmd.Flags().IntVar(&overrides.MaxSteadyStates, "max-steady-states", overrides.MaxSteadyStates, "Upper bound on defined steady states")
	cmd.Flags().IntVar(&overrides.MaxRetries, "max-retries", overrides.MaxRetries, "Retry budget per phase and improvement loop")

	return cmd
}

// applyChanged copies only the flag values the user actually set onto
// the loaded config, so file settings survive unset flags.
func applyChanged(cmd *cobra.Command, cfg, overrides *config.Config) {
	set := map[string]func(){
		"context":           func() { cfg.KubeContext = overrides.KubeContext },
		"namespace":         func() { cfg.Namespace = overrides.Namespace },
		"chaos-namespace":   func() { cfg.ChaosNamespace = overrides.ChaosNamespace },
		"project":           func() { cfg.Project = overrides.Project },
		"work-dir":          func() { cfg.WorkDir = overrides.WorkDir },
		"host-root":         func() { cfg.HostRoot = overrides.HostRoot },
		"clean-before":      func() { cfg.CleanBefore = overrides.CleanBefore },
		"clean-after":       func() { cfg.CleanAfter = overrides.CleanAfter },
		"new-deployment":    func() { cfg.NewDeployment = overrides.NewDeployment },
		"max-steady-states": func() { cfg.MaxSteadyStates = overrides.MaxSteadyStates },
		"max-retries":       func() { cfg.MaxRetries = overrides.MaxRetries },
	}
	for name, apply := range set {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}
