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

	"github.com/zhhtdm/lzhbrowser/internal/api"
	"github.com/zhhtdm/lzhbrowser/internal/browser"
)

// newServeCmd creates the 'serve' subcommand running the HTTP API.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP fetch API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := loadRuntime()
			if err != nil {
				return err
			}
			defer deps.logger.Sync() //nolint:errcheck // best-effort flush

			session, err := browser.New(deps.cfg.Browser.SessionConfig(), deps.logger)
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			defer session.Close()

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", deps.cfg.Server.Port),
				Handler:           api.NewServer(session, deps.logger).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				deps.logger.Info("HTTP API listening", zap.String("addr", server.Addr))
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
			case <-ctx.Done():
				deps.logger.Info("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					deps.logger.Warn("HTTP shutdown failed", zap.Error(err))
				}
			}
			return nil
		},
	}
}
