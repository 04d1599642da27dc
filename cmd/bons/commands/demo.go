package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bons/internal/app"
	"bons/internal/domain"
	"bons/internal/logging"
	"bons/internal/publog"
	"bons/internal/services/transfer"
)

const demoPassphrase = "Demo-Voucher-2026!"

func (c *cli) demoCmd() *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:         "demo",
		Short:       "Issue a voucher and pass it between two in-memory devices",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := domain.ParseAmount(amount)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			lvl, ok := logging.ParseLevel(c.logLevel)
			if !ok {
				lvl = logging.DefaultConfig("bons", logging.ProfileRuntime).Level
			}
			logger := logging.New(logging.Config{App: "bons-demo", Level: lvl, Out: cmd.ErrOrStderr()})
			pub := publog.NewMemory()

			open := func(name string) (*app.App, func(), error) {
				dir, err := os.MkdirTemp("", "bons-"+name+"-")
				if err != nil {
					return nil, nil, err
				}
				cfg := app.DefaultConfig(dir)
				cfg.Store = app.StoreMemory
				a, err := app.Open(cfg, logger.With().Str("device", name).Logger(), pub)
				if err != nil {
					_ = os.RemoveAll(dir)
					return nil, nil, err
				}
				return a, func() { _ = a.Close(); _ = os.RemoveAll(dir) }, nil
			}
			alice, closeAlice, err := open("alice")
			if err != nil {
				return err
			}
			defer closeAlice()
			bob, closeBob, err := open("bob")
			if err != nil {
				return err
			}
			defer closeBob()

			out := cmd.OutOrStdout()
			_, fp, err := alice.Identity.GenerateIdentity(demoPassphrase, "Demo Cafe")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "issuer fingerprint  %s\n", fp)
			v, err := alice.Issuance.Issue(ctx, demoPassphrase, value, 24*time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "issued              %s worth %s\n", v.ID, v.Value.Display())

			confirm := func(d transfer.Details) bool {
				fmt.Fprintf(out, "receiver sees       %s from %s\n", d.Value.Display(), d.IssuerName)
				return true
			}
			given, taken, err := transfer.RunLoopback(ctx, alice.Transfer, bob.Transfer, v.ID, confirm)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "donor committed     transfer #%d in %s\n", given.TransferCount, given.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "receiver committed  transfer #%d in %s\n", taken.TransferCount, taken.Duration.Round(time.Millisecond))

			for _, side := range []struct {
				name string
				a    *app.App
			}{{"alice", alice}, {"bob", bob}} {
				got, _, err := side.a.Ledger.Get(v.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-19s %s, holding=%t\n", side.name, got.Status, got.Holding())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "value", "5.00", "voucher value")
	return cmd
}
