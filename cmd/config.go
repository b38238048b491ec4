/* cmd/config.go */

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/effluxlabs/efflux-vault/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the efflux-vault configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		path := "efflux-vault.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteExample(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s. Edit it, or override values with EFFLUX_* environment variables.\n", path)
		return nil
	}),
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
