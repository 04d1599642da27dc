package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"bons/internal/app"
	"bons/internal/errors"
	"bons/internal/logging"
)

const skipApp = "skip-app"

// cli holds the flags and the opened device of one invocation.
type cli struct {
	home       string
	passphrase string
	configPath string
	logLevel   string
	publicLog  string
	storeKind  string

	app *app.App
}

// Execute runs the root command.
func Execute() error {
	c := &cli{}
	return c.execute(c.newRoot())
}

// execute runs root and closes the device whether or not the command
// succeeded, so the ledger store is never left locked.
func (c *cli) execute(root *cobra.Command) error {
	err := root.Execute()
	if c.app != nil {
		if cerr := c.app.Close(); err == nil {
			err = cerr
		}
		c.app = nil
	}
	return err
}

func (c *cli) newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "bons",
		Short:         "Offline voucher custody and transfer",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipApp] != "" {
				return nil
			}
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.New(logging.Config{
				App:       "bons",
				Level:     cfg.LogLevel,
				Timestamp: true,
				Out:       cmd.ErrOrStderr(),
			})
			c.app, err = app.Open(cfg, logger, nil)
			return err
		},
	}

	root.PersistentFlags().StringVar(&c.home, "home", "", "state dir (default $BONS_HOME or ~/.bons)")
	root.PersistentFlags().StringVarP(&c.passphrase, "passphrase", "p", "", "passphrase protecting the identity and file store")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default <home>/config.toml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.publicLog, "public-log", "", "public log base URL")
	root.PersistentFlags().StringVar(&c.storeKind, "store", "", "ledger backend: leveldb, file or memory")

	root.AddCommand(
		c.initCmd(),
		c.fingerprintCmd(),
		c.issueCmd(),
		c.listCmd(),
		c.showCmd(),
		c.giveCmd(),
		c.takeCmd(),
		c.resumeCmd(),
		c.cancelCmd(),
		c.redeemCmd(),
		c.sweepCmd(),
		c.demoCmd(),
	)
	return root
}

func (c *cli) loadConfig(cmd *cobra.Command) (app.Config, error) {
	if c.home == "" {
		h, err := app.DefaultHome()
		if err != nil {
			return app.Config{}, err
		}
		c.home = h
	}
	cfg := app.DefaultConfig(c.home)
	path := c.configPath
	if path == "" {
		path = filepath.Join(c.home, app.ConfigFile)
	}
	cfg, err := app.LoadConfig(path, cfg)
	if err != nil {
		return app.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("log") {
		lvl, ok := logging.ParseLevel(c.logLevel)
		if !ok {
			return app.Config{}, errors.ErrInvalidInput.Newf("log level %q", c.logLevel)
		}
		cfg.LogLevel = lvl
	}
	if flags.Changed("public-log") {
		cfg.PublicLogURL = c.publicLog
	}
	if flags.Changed("store") {
		cfg.Store = c.storeKind
	}
	cfg.Passphrase = c.passphrase
	return cfg, nil
}

// signalContext is cancelled by Ctrl-C so handshakes release their locks.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func (c *cli) requirePassphrase() error {
	if c.passphrase == "" {
		return errors.ErrInvalidInput.New("passphrase required (-p)")
	}
	return nil
}
