package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/services/transfer"
	"bons/internal/transport"
)

func (c *cli) giveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "give <voucher-id>",
		Short: "Offer a voucher; the offer is written to stdout and the ack read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseVoucherID(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			ch := transport.NewText(cmd.InOrStdin(), cmd.OutOrStdout())
			fmt.Fprintf(cmd.ErrOrStderr(), "Offering %s, waiting for the receiver's acknowledgement...\n",
				crypto.VoucherFingerprint(id))
			res, err := c.app.Transfer.Give(ctx, id, ch)
			if err != nil {
				return err
			}
			printResult(cmd.ErrOrStderr(), res)
			return nil
		},
	}
}

func (c *cli) resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <voucher-id>",
		Short: "Show the pending offer again and keep waiting for its ack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseVoucherID(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			sess, err := c.app.Transfer.ResumeDonor(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Resumed %s, %s left\n",
				crypto.VoucherFingerprint(id), time.Until(sess.ExpiresAt()).Round(time.Second))
			ch := transport.NewText(cmd.InOrStdin(), cmd.OutOrStdout())
			res, err := c.app.Transfer.Continue(ctx, sess, ch)
			if err != nil {
				return err
			}
			printResult(cmd.ErrOrStderr(), res)
			return nil
		},
	}
}

func (c *cli) takeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Receive a voucher; the offer is read from stdin and the ack written to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			confirm := func(d transfer.Details) bool {
				printDetails(cmd.ErrOrStderr(), d)
				if yes {
					return true
				}
				return askTTY(cmd.ErrOrStderr(), "Accept this voucher? [y/N] ")
			}
			ch := transport.NewText(cmd.InOrStdin(), cmd.OutOrStdout())
			res, err := c.app.Transfer.Take(ctx, ch, confirm)
			if res.VoucherID.IsZero() {
				return err
			}
			printResult(cmd.ErrOrStderr(), res)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept without asking")
	return cmd
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <voucher-id>",
		Short: "Abort an interrupted transfer and release the voucher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseVoucherID(args[0])
			if err != nil {
				return err
			}
			lock, ok, err := c.app.Ledger.GetLock(id)
			if err != nil {
				return err
			}
			if !ok {
				return errors.ErrNotFound.Newf("no transfer in progress for %s", crypto.VoucherFingerprint(id))
			}
			if err := c.app.Ledger.Cancel(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s transfer of %s\n", lock.Role, crypto.VoucherFingerprint(id))
			return nil
		},
	}
}

func printDetails(w io.Writer, d transfer.Details) {
	fmt.Fprintf(w, "Voucher: %s\n", crypto.VoucherFingerprint(d.VoucherID))
	fmt.Fprintf(w, "Value:   %s\n", d.Value.Display())
	fmt.Fprintf(w, "Issuer:  %s (%s)\n", d.IssuerName, d.IssuerFingerprint)
	if !d.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires: %s\n", d.ExpiresAt.Format(time.RFC3339))
	}
}

func printResult(w io.Writer, r transfer.Result) {
	verb := "Gave"
	if r.Role == domain.RoleReceiver {
		verb = "Received"
	}
	fmt.Fprintf(w, "%s %s worth %s from %s (transfer #%d, %s)\n",
		verb, crypto.VoucherFingerprint(r.VoucherID), r.Value.Display(), r.IssuerName,
		r.TransferCount, r.Duration.Round(time.Millisecond))
}

// askTTY asks on the controlling terminal since stdin carries the offer.
func askTTY(w io.Writer, prompt string) bool {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		fmt.Fprintln(w, "no terminal to confirm on; use --yes")
		return false
	}
	defer tty.Close()
	fmt.Fprint(w, prompt)
	line, _ := bufio.NewReader(tty).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
