package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nishad/bdp/internal/httpapi"
	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only operational status surface",
	Long: `serve starts the Operational Status Surface (C7): GET /jobs/{id},
GET /versions/{org}/{slug}, and GET /blobs/{key}. It drains in-flight
requests on SIGTERM/SIGINT within the configured drain window before
exiting (spec §5), the same generalization of the teacher's ctx.Done()
draining the Ingestion Engine's worker pool already uses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := httpapi.NewServer(httpapi.Config{Host: serveHost, Port: servePort}, a.DB, a.Blobs)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return fmt.Errorf("server: %w", err)
		case <-ctx.Done():
		}

		drain := time.Duration(a.Config.Worker.DrainWindowSecs) * time.Second
		if drain <= 0 {
			drain = 60 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()

		fmt.Printf("draining (up to %s)...\n", drain)
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
}
