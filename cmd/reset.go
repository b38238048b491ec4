/* cmd/reset.go */

package cmd

import (
	"fmt"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/effluxlabs/efflux-vault/pkg/reset"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
	"github.com/effluxlabs/efflux-vault/pkg/vaultio"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drive the vault password reset flow",
	Long: `Resetting a vault password is destructive: the old envelope cannot be
decrypted without the old password, so completing a reset deletes the vault
and creates an empty one under the new password. Stored API keys must be
re-entered afterwards.`,
}

var (
	resetEmail string
	resetToken string
)

var resetRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Email the user a single-use reset link",
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		if resetEmail == "" {
			return vaulterr.NewExpectedError(cerr.New("pass --email with the recipient address"))
		}
		a, err := newApp(rc)
		if err != nil {
			return err
		}

		if err := a.resetter.Request(rc.Ctx, userID, resetEmail); err != nil {
			if cerr.Is(err, vaulterr.ErrNoVault) || cerr.Is(err, reset.ErrRateLimited) {
				return vaulterr.NewExpectedError(err)
			}
			return err
		}
		fmt.Printf("Reset link sent to %s. It expires in %s.\n", resetEmail, reset.TokenTTL)
		return nil
	}),
}

var resetCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Redeem a reset token and set a new vault password",
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		if resetToken == "" {
			return vaulterr.NewExpectedError(cerr.New("pass --token from the reset link"))
		}
		a, err := newApp(rc)
		if err != nil {
			return err
		}

		newPassword, err := vaultio.PromptSecurePasswordConfirmed(rc, "New vault password: ")
		if err != nil {
			return vaulterr.NewExpectedError(err)
		}

		if err := a.resetter.Complete(rc.Ctx, userID, resetToken, newPassword); err != nil {
			return expectedIfUserFacing(err)
		}
		a.session.Lock(rc.Ctx)

		fmt.Println("Password reset. The vault is empty; re-add your API keys.")
		return nil
	}),
}

func init() {
	resetRequestCmd.Flags().StringVar(&resetEmail, "email", "", "address the reset link is sent to")
	resetCompleteCmd.Flags().StringVar(&resetToken, "token", "", "reset token from the emailed link")

	resetCmd.AddCommand(resetRequestCmd, resetCompleteCmd)
}
