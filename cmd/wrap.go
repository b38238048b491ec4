/* cmd/wrap.go */

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/effluxlabs/efflux-vault/pkg/vaultio"
)

type runContext = vaultio.RuntimeContext

// wrap gives every command panic recovery, a traced context, and a scoped
// logger, and records the outcome when the command returns.
func wrap(fn func(rc *runContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		rc := vaultio.NewContext(cmd.Context(), cmd.Name())
		defer rc.End(&err)
		defer rc.HandlePanic(&err)
		return fn(rc, cmd, args)
	}
}
