// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated
// to handler functions in the handlers package.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExitError carries a non-zero process exit code up to main without
// printing a second error message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// Root returns the root command for the chaoskit CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chaoskit",
		Short:         "Automated chaos engineering cycles for Kubernetes",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(Run())
	cmd.AddCommand(Cleanup())
	cmd.AddCommand(Version())

	return cmd
}
