package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zwazel/coding-battle-backend/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload and live-play HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer server.SyncLogger()
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}

			runs, err := server.NewRunManager(cfg)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           server.NewServer(cfg, runs).Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// 优雅退出（Ctrl+C）
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				server.Log.Infof("botarena listening on %s; upload dir %s", cfg.Addr, cfg.UploadDir)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			server.Log.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "server listen address, e.g. :8080")
	return cmd
}
