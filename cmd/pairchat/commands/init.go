package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pairchat/internal/crypto"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if wire.Keys.Exists() && !force {
				return fmt.Errorf("identity already exists in %s (use --force to replace it)", wire.Config.Home)
			}
			id, fp, err := wire.Identity.GenerateIdentity(passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created.\nIdentity:    %s\nFingerprint: %s\n", id, crypto.FormatFingerprint(fp))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	return cmd
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print your identity and its fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}
			fp, err := crypto.FingerprintIdentity(acct.Self)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity:    %s\nFingerprint: %s\n", acct.Self, crypto.FormatFingerprint(fp))
			return nil
		},
	}
}
