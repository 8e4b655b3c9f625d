package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/app"
	"github.com/asagiri-dev/choukan/internal/config"
	"github.com/asagiri-dev/choukan/internal/schedule"
	"github.com/asagiri-dev/choukan/internal/server"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the job scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		sched := schedule.New(a.Logger)
		for name, spec := range a.Schedules() {
			jb, ok := a.Registry.Get(name)
			if !ok {
				continue
			}
			if err := sched.Add(spec, jb); err != nil {
				return err
			}
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.New(a.Registry, a.Store, a.Logger).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.Logger.Info("Server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		sched.Start()

		select {
		case <-ctx.Done():
			a.Logger.Info("Shutdown signal received")
		case err := <-errCh:
			return fmt.Errorf("server: %w", err)
		}

		sched.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.Logger.Info("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
