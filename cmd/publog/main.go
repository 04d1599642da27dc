package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"bons/internal/logging"
	"bons/internal/metrics"
	"bons/internal/publog"
	"bons/internal/store"
)

func main() {
	var addr, level, dataDir string
	var inMemory bool
	cmd := &cobra.Command{
		Use:          "publog",
		Short:        "Serve the bons public log",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := logging.DefaultConfig("publog", logging.ProfileRuntime)
			if lvl, ok := logging.ParseLevel(level); ok {
				cfg.Level = lvl
			}
			cfg.Out = cmd.ErrOrStderr()
			logger := logging.New(cfg)

			gin.SetMode(gin.ReleaseMode)
			metrics.Register()

			mem := publog.NewMemory()
			if inMemory {
				logger.Warn().Msg("in-memory log; records are lost on exit")
			} else {
				kv, err := store.OpenLevelKV(dataDir)
				if err != nil {
					return err
				}
				defer kv.Close()
				if mem, err = publog.OpenMemory(kv); err != nil {
					return err
				}
				logger.Info().Str("data", dataDir).Int("records", mem.Len()).Msg("public log loaded")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return publog.Serve(ctx, addr, publog.NewServer(mem, logger), logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&level, "log", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&dataDir, "data", "publog-data", "leveldb directory holding the log")
	cmd.Flags().BoolVar(&inMemory, "memory", false, "keep the log in memory only (development)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
