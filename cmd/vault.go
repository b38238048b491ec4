/* cmd/vault.go */

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/effluxlabs/efflux-vault/pkg/crypto"
	"github.com/effluxlabs/efflux-vault/pkg/secretset"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
	"github.com/effluxlabs/efflux-vault/pkg/vaultio"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Create, inspect and edit a user's credential vault",
}

var (
	generatePassword bool
	deleteConfirmed  bool
	awsAccessKeyID   string
	awsSecretKey     string
	awsRegion        string
	azureAPIKey      string
	azureEndpoint    string
	azureDeployment  string
)

var vaultCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty vault for a user",
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		a, err := newApp(rc)
		if err != nil {
			return err
		}

		var password string
		if generatePassword {
			password, err = crypto.GeneratePassword(32)
			if err != nil {
				return err
			}
		} else {
			password, err = vaultio.PromptSecurePasswordConfirmed(rc, "Vault password: ")
			if err != nil {
				return vaulterr.NewExpectedError(err)
			}
		}

		if err := a.vaults.Create(rc.Ctx, userID, nil, password); err != nil {
			if cerr.Is(err, vaulterr.ErrVaultExists) {
				return vaulterr.NewExpectedError(err)
			}
			return err
		}

		fmt.Println("Vault created.")
		if generatePassword {
			// Shown once; it is not stored anywhere.
			fmt.Printf("Generated password: %s\n", password)
		}
		return nil
	}),
}

var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a vault exists and whether the session is unlocked",
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		a, err := newApp(rc)
		if err != nil {
			return err
		}

		exists, err := a.vaults.Exists(rc.Ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			fmt.Println("No vault. Run `efflux-vault vault create` first.")
			return nil
		}

		if err := a.session.Restore(rc.Ctx); err != nil {
			rc.Log.Warn("Failed to restore session state", zap.Error(err))
		}
		state := "locked"
		if a.session.IsUnlocked() {
			state = "unlocked"
		}
		fmt.Printf("Vault exists, session %s.\n", state)
		return nil
	}),
}

var vaultShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Unlock the vault and list configured providers",
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		a, err := newApp(rc)
		if err != nil {
			return err
		}

		set, password, err := unlockVault(rc, a)
		if err != nil {
			return err
		}
		a.session.Unlock(rc.Ctx, password, set)

		if set.IsEmpty() {
			fmt.Println("Vault is empty.")
			return nil
		}
		for _, p := range secretset.Providers() {
			if !set.Has(p) {
				continue
			}
			switch p {
			case secretset.ProviderAWS:
				fmt.Printf("%-10s access key %s, region %s\n", p, crypto.RedactTail(set.AWS.AccessKeyID), set.AWS.Region)
			case secretset.ProviderAzure:
				fmt.Printf("%-10s deployment %s at %s\n", p, set.Azure.DeploymentName, set.Azure.Endpoint)
			case secretset.ProviderOpenAI:
				fmt.Printf("%-10s %s\n", p, crypto.RedactTail(set.OpenAI))
			case secretset.ProviderAnthropic:
				fmt.Printf("%-10s %s\n", p, crypto.RedactTail(set.Anthropic))
			case secretset.ProviderGoogle:
				fmt.Printf("%-10s %s\n", p, crypto.RedactTail(set.Google))
			}
		}
		return nil
	}),
}

var vaultSetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Store or replace one provider credential",
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

		value, err := collectCredential(rc, prov)
		if err != nil {
			return err
		}

		password, err := vaultio.PromptSecurePassword(rc, "Vault password: ")
		if err != nil {
			return vaulterr.NewExpectedError(err)
		}
		if err := a.vaults.UpdateField(rc.Ctx, userID, prov, value, password); err != nil {
			return expectedIfUserFacing(err)
		}
		fmt.Printf("Stored %s credential.\n", prov)
		return nil
	}),
}

var vaultUnsetCmd = &cobra.Command{
	Use:   "unset <provider>",
	Short: "Remove one provider credential",
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

		password, err := vaultio.PromptSecurePassword(rc, "Vault password: ")
		if err != nil {
			return vaulterr.NewExpectedError(err)
		}
		if err := a.vaults.RemoveField(rc.Ctx, userID, prov, password); err != nil {
			return expectedIfUserFacing(err)
		}
		fmt.Printf("Removed %s credential.\n", prov)
		return nil
	}),
}

var vaultDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a user's vault and every secret in it",
	RunE: wrap(func(rc *runContext, cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		if !deleteConfirmed {
			fmt.Printf("This permanently destroys the vault for %q. Type the user id to confirm: ", userID)
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return cerr.Wrap(err, "read confirmation")
			}
			if strings.TrimSpace(line) != userID {
				return vaulterr.NewExpectedError(cerr.New("confirmation did not match, aborting"))
			}
		}

		a, err := newApp(rc)
		if err != nil {
			return err
		}
		if err := a.vaults.Delete(rc.Ctx, userID); err != nil {
			return err
		}
		a.session.Lock(rc.Ctx)
		fmt.Println("Vault deleted.")
		return nil
	}),
}

func init() {
	vaultCreateCmd.Flags().BoolVar(&generatePassword, "generate", false, "generate a strong password instead of prompting")
	vaultDeleteCmd.Flags().BoolVar(&deleteConfirmed, "yes", false, "skip the interactive confirmation")

	vaultSetCmd.Flags().StringVar(&awsAccessKeyID, "access-key-id", "", "AWS access key id (aws only)")
	vaultSetCmd.Flags().StringVar(&awsSecretKey, "secret-access-key", "", "AWS secret access key (aws only)")
	vaultSetCmd.Flags().StringVar(&awsRegion, "region", "", "AWS region (aws only)")
	vaultSetCmd.Flags().StringVar(&azureAPIKey, "api-key", "", "Azure OpenAI API key (azure only)")
	vaultSetCmd.Flags().StringVar(&azureEndpoint, "endpoint", "", "Azure OpenAI endpoint URL (azure only)")
	vaultSetCmd.Flags().StringVar(&azureDeployment, "deployment", "", "Azure OpenAI deployment name (azure only)")

	vaultCmd.AddCommand(vaultCreateCmd, vaultStatusCmd, vaultShowCmd, vaultSetCmd, vaultUnsetCmd, vaultDeleteCmd)
}

// unlockVault prompts for the vault password and decrypts the secret set.
func unlockVault(rc *runContext, a *app) (*secretset.SecretSet, string, error) {
	password, err := vaultio.PromptSecurePassword(rc, "Vault password: ")
	if err != nil {
		return nil, "", vaulterr.NewExpectedError(err)
	}
	set, err := a.vaults.Open(rc.Ctx, userID, password)
	if err != nil {
		return nil, "", expectedIfUserFacing(err)
	}
	return set, password, nil
}

// collectCredential gathers the credential value for one provider, from
// flags for the structured providers and from a no-echo prompt for the
// plain API key ones.
func collectCredential(rc *runContext, prov secretset.Provider) (any, error) {
	switch prov {
	case secretset.ProviderAWS:
		if awsSecretKey == "" {
			secret, err := vaultio.PromptSecurePassword(rc, "AWS secret access key: ")
			if err != nil {
				return nil, vaulterr.NewExpectedError(err)
			}
			awsSecretKey = secret
		}
		return secretset.AWSCredential{
			AccessKeyID:     awsAccessKeyID,
			SecretAccessKey: awsSecretKey,
			Region:          awsRegion,
		}, nil
	case secretset.ProviderAzure:
		if azureAPIKey == "" {
			key, err := vaultio.PromptSecurePassword(rc, "Azure OpenAI API key: ")
			if err != nil {
				return nil, vaulterr.NewExpectedError(err)
			}
			azureAPIKey = key
		}
		return secretset.AzureCredential{
			APIKey:         azureAPIKey,
			Endpoint:       azureEndpoint,
			DeploymentName: azureDeployment,
		}, nil
	default:
		key, err := vaultio.PromptSecurePassword(rc, fmt.Sprintf("%s API key: ", prov))
		if err != nil {
			return nil, vaulterr.NewExpectedError(err)
		}
		return key, nil
	}
}

func parseProvider(arg string) (secretset.Provider, error) {
	p := secretset.Provider(strings.ToLower(arg))
	if !p.Valid() {
		return "", vaulterr.NewExpectedError(cerr.Newf("unknown provider %q, expected one of %v", arg, secretset.Providers()))
	}
	return p, nil
}

// expectedIfUserFacing downgrades the errors a user can cause themselves
// (wrong password, missing vault) so they exit without a stack trace.
func expectedIfUserFacing(err error) error {
	switch {
	case cerr.Is(err, vaulterr.ErrNoVault),
		cerr.Is(err, vaulterr.ErrWrongPasswordOrCorrupt),
		cerr.Is(err, vaulterr.ErrInvalidOrExpiredToken),
		cerr.Is(err, vaulterr.ErrVaultExists):
		return vaulterr.NewExpectedError(err)
	}
	return err
}
