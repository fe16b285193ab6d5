package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhhtdm/lzhbrowser/internal/browser"
)

// newFetchCmd creates the 'fetch' subcommand: a one-off fetch that prints
// the rendered HTML to stdout.
func newFetchCmd() *cobra.Command {
	var (
		retries   int
		timeoutMs int
		waitUntil string
		selector  string
		abort     []string
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch one URL and print the rendered HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := loadRuntime()
			if err != nil {
				return err
			}
			defer deps.logger.Sync() //nolint:errcheck // best-effort flush

			wait, err := browser.ParseWaitUntil(waitUntil)
			if err != nil {
				return err
			}
			abortTypes, err := browser.ParseResourceTypes(abort)
			if err != nil {
				return err
			}

			session, err := browser.New(deps.cfg.Browser.SessionConfig(), deps.logger)
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			defer session.Close()

			html, err := session.Fetch(cmd.Context(), browser.FetchRequest{
				URL:       args[0],
				Retries:   retries,
				Timeout:   time.Duration(timeoutMs) * time.Millisecond,
				WaitUntil: wait,
				Selector:  selector,
				Abort:     abortTypes,
			})
			if errors.Is(err, browser.ErrAttemptsExhausted) {
				deps.logger.Error("Fetch exhausted all attempts", zap.String("url", args[0]))
				return err
			}
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), html)
			return nil
		},
	}

	cmd.Flags().IntVar(&retries, "retries", 0, "retry count (0 uses the configured default)")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "per-phase timeout in milliseconds (0 uses the configured default)")
	cmd.Flags().StringVar(&waitUntil, "wait-until", "", "navigation completion condition: commit, domcontentloaded, load, networkidle")
	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector to await after navigation")
	cmd.Flags().StringSliceVar(&abort, "abort", nil, "resource types to block, e.g. image,font")

	return cmd
}
