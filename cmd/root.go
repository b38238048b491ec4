/* cmd/root.go */

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/effluxlabs/efflux-vault/pkg/logger"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
)

// RootCmd is the base command for efflux-vault.
var RootCmd = &cobra.Command{
	Use:   "efflux-vault",
	Short: "Efflux credential vault administration",
	Long: `efflux-vault manages the encrypted per-user credential vaults behind
Efflux: creating and inspecting vaults, storing provider API keys, driving
the password reset flow, and checking stored credentials against their
providers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}),
}

var (
	configPath string
	userID     string
)

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	RootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id the operation applies to")

	for _, sub := range []*cobra.Command{
		vaultCmd,
		resetCmd,
		providerCmd,
		configCmd,
	} {
		RootCmd.AddCommand(sub)
	}
}

// Execute initializes and runs the root command.
func Execute() {
	defer logger.Sync()

	RegisterCommands()

	if err := RootCmd.Execute(); err != nil {
		if vaulterr.IsExpectedUserError(err) {
			logger.L().Warn("CLI completed with user error", zap.Error(err))
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		logger.L().Error("CLI failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
