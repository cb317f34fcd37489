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

	"github.com/warp/stockroom/api"
	"github.com/warp/stockroom/inventory"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the stockroom HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := a.cfg, a.logger
			ctx := context.Background()

			st, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					logger.Error("error closing store", "err", err)
				}
			}()

			locker, closeLocker, err := newLocker(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeLocker()

			publisher, err := newPublisher(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := publisher.Close(); err != nil {
					logger.Error("error closing publisher", "err", err)
				}
			}()

			svc := inventory.NewService(inventory.Deps{
				Store:             st,
				Locker:            locker,
				Publisher:         publisher,
				Logger:            logger,
				LowStockThreshold: cfg.LowStockThreshold,
			})
			handler := api.NewHandler(svc, logger)

			if cfg.AuditInterval > 0 {
				handler.Scheduler = api.NewAuditScheduler(handler.Reports, logger)
				handler.Scheduler.Interval = cfg.AuditInterval
				handler.Scheduler.Start()
				defer handler.Scheduler.Stop()
			}

			server := &http.Server{
				Addr:         cfg.HTTPAddr,
				Handler:      api.NewRouter(handler),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case sig := <-sigCh:
				logger.Info("received signal, shutting down", "signal", sig)
			case err := <-errCh:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", "err", err)
			}
			logger.Info("HTTP server stopped")
			return nil
		},
	}
}
