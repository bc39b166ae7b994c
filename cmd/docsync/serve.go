package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zeusync/docsync/internal/injector"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an in-memory document store",
	Long: `Run an in-memory document store until interrupted.

Documents live only in memory and are lost on shutdown. Routes are served
under the configured path prefix (default /1), e.g.
  POST http://127.0.0.1:1337/1/classes/GameScore`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		srv := injector.InitializeServer(cfg)
		if err = srv.Start(ctx); err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Document store listening on http://%s\n", srv.Addr())

		<-ctx.Done()
		return srv.Stop(context.Background())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
