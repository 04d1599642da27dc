package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
)

func (c *cli) issueCmd() *cobra.Command {
	var valid time.Duration
	cmd := &cobra.Command{
		Use:   "issue <amount>",
		Short: "Issue a voucher worth <amount> (e.g. 12.50)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requirePassphrase(); err != nil {
				return err
			}
			value, err := domain.ParseAmount(args[0])
			if err != nil {
				return err
			}
			v, err := c.app.Issuance.Issue(cmd.Context(), c.passphrase, value, valid)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Issued %s\n", v.ID)
			fmt.Fprintf(out, "Value:   %s\n", v.Value.Display())
			if !v.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Expires: %s\n", v.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&valid, "valid", 90*24*time.Hour, "validity period; 0 never expires")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vouchers on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := c.app.Ledger.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VOUCHER\tVALUE\tSTATUS\tISSUER\tTRANSFERS\tHELD")
			for _, v := range vs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\n",
					v.ID.String()[:16], v.Value.Display(), v.Status, v.IssuerName, v.TransferCount, v.Holding())
			}
			return tw.Flush()
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <voucher-id>",
		Short: "Show one voucher and its audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseVoucherID(args[0])
			if err != nil {
				return err
			}
			v, ok, err := c.app.Ledger.Get(id)
			if err != nil {
				return err
			}
			if !ok {
				return errors.ErrNotFound.Newf("voucher %s", crypto.VoucherFingerprint(id))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Voucher:   %s\n", v.ID)
			fmt.Fprintf(out, "Value:     %s\n", v.Value.Display())
			fmt.Fprintf(out, "Issuer:    %s (%s)\n", v.IssuerName, crypto.Fingerprint(v.IssuerPublicKey.Slice()))
			fmt.Fprintf(out, "Status:    %s\n", v.Status)
			fmt.Fprintf(out, "Held:      %t\n", v.Holding())
			fmt.Fprintf(out, "Transfers: %d\n", v.TransferCount)
			fmt.Fprintf(out, "Created:   %s\n", v.CreatedAt.Format(time.RFC3339))
			if !v.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Expires:   %s\n", v.ExpiresAt.Format(time.RFC3339))
			}
			if lock, ok, err := c.app.Ledger.GetLock(id); err == nil && ok && !lock.Expired(time.Now()) {
				fmt.Fprintf(out, "Transfer:  %s, %s left\n", lock.Role, lock.Remaining(time.Now()).Round(time.Second))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), c.app.Config.Transfer.FetchTimeout)
			defer cancel()
			evs, err := c.app.PublicLog.Events(ctx, id)
			if err != nil {
				c.app.Log.Warn().Err(err).Msg("audit trail unavailable")
				return nil
			}
			for _, ev := range evs {
				fmt.Fprintf(out, "  %s  %-11s #%d\n", ev.At.Format(time.RFC3339), ev.Kind, ev.TransferCount)
			}
			return nil
		},
	}
}

func (c *cli) redeemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <voucher-id>",
		Short: "Burn a voucher that came back to its issuer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseVoucherID(args[0])
			if err != nil {
				return err
			}
			v, err := c.app.Issuance.Redeem(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Redeemed %s for %s after %d transfers\n",
				crypto.VoucherFingerprint(id), v.Value.Display(), v.TransferCount)
			return nil
		},
	}
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Revoke vouchers whose validity has ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := c.app.Issuance.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d voucher(s) revoked\n", len(ids))
			return nil
		},
	}
}
