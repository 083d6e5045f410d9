package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var withoutWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reconciliation sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, srv, err := newServerApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			httpServer := srv.HTTPServer(cfg.HTTPAddr)
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				logger.Info("shutting down http server")
				return httpServer.Shutdown(shutdownCtx)
			})
			if !withoutWorker {
				g.Go(func() error {
					return a.reconciler().Run(gctx)
				})
			}

			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&withoutWorker, "no-worker", false, "do not run the reconciliation sweep in this process")
	return cmd
}
