/* cmd/provider.go */

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Check stored credentials against their AI providers",
}

var providerValidateCmd = &cobra.Command{
	Use:   "validate <provider>",
	Short: "Verify a stored credential with a minimal upstream call",
	Args:  cobra.ExactArgs(1),
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		prov, err := parseProvider(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(rc)
		if err != nil {
			return err
		}

		set, _, err := unlockVault(rc, a)
		if err != nil {
			return err
		}
		a.ai.Configure(*set)
		defer a.ai.Reset()

		if !a.ai.Available(prov) {
			return vaulterr.NewExpectedError(
				fmt.Errorf("no %s credential in the vault, add one with `efflux-vault vault set %s`", prov, prov))
		}
		if err := a.ai.Validate(rc.Ctx, prov); err != nil {
			fmt.Printf("%s credential FAILED validation: %v\n", prov, err)
			return vaulterr.NewExpectedError(err)
		}
		fmt.Printf("%s credential is valid.\n", prov)
		return nil
	}),
}

var providerModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models reachable with the stored credentials",
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		a, err := newApp(rc)
		if err != nil {
			return err
		}

		set, _, err := unlockVault(rc, a)
		if err != nil {
			return err
		}
		a.ai.Configure(*set)
		defer a.ai.Reset()

		models := a.ai.Models()
		if len(models) == 0 {
			fmt.Println("No providers configured.")
			return nil
		}
		for _, m := range models {
			fmt.Printf("%-10s %-42s %s\n", m.Provider, m.ID, m.Name)
		}
		return nil
	}),
}

func init() {
	providerCmd.AddCommand(providerValidateCmd, providerModelsCmd)
}
