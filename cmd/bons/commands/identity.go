package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) initCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate the issuer identity and store it securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requirePassphrase(); err != nil {
				return err
			}
			id, fp, err := c.app.Identity.GenerateIdentity(c.passphrase, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created for %q.\nFingerprint: %s\n", id.Name, fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "issuer name shown to receivers (at most 27 bytes)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the issuer fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requirePassphrase(); err != nil {
				return err
			}
			fp, err := c.app.Identity.FingerprintIdentity(c.passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", fp)
			return nil
		},
	}
}
