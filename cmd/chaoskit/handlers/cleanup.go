package handlers

import (
	"context"
	"fmt"

	"github.com/chaoskit/chaoskit/internal/config"
)

// Cleanup removes everything a cycle deployed: resources labeled with
// the project across all namespaces, plus workflow leftovers in the
// chaos namespace.
func Cleanup(ctx context.Context, cfg config.Config) error {
	client, err := newK8sClient(cfg.Kubeconfig, cfg.KubeContext)
	if err != nil {
		return err
	}
	if err := client.DeleteByLabel(ctx, "project="+cfg.Project); err != nil {
		return fmt.Errorf("deleting labeled resources: %w", err)
	}
	kinds := []string{"workflows", "workflownodes", "deployments", "pods", "services", "configmaps"}
	if err := client.DeleteByNamespace(ctx, cfg.ChaosNamespace, kinds); err != nil {
		return fmt.Errorf("cleaning namespace %s: %w", cfg.ChaosNamespace, err)
	}
	return nil
}
