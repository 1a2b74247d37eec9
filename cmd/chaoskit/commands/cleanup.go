package commands

import (
	"github.com/spf13/cobra"

	"github.com/chaoskit/chaoskit/cmd/chaoskit/handlers"
	"github.com/chaoskit/chaoskit/internal/config"
)

// Cleanup returns the command that tears down everything a cycle left
// on the cluster: resources carrying the project label plus workflow
// leftovers in the chaos namespace.
func Cleanup() *cobra.Command {
	var configPath string
	overrides := config.Default()

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove cluster resources left by a cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyChanged(cmd, &cfg, &overrides)
			return handlers.Cleanup(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&overrides.KubeContext, "context", overrides.KubeContext, "Kubeconfig context")
	cmd.Flags().StringVar(&overrides.Project, "project", overrides.Project, "Project label applied to deployed resources")
	cmd.Flags().StringVar(&overrides.ChaosNamespace, "chaos-namespace", overrides.ChaosNamespace, "Namespace for Chaos Mesh workflows")

	return cmd
}
