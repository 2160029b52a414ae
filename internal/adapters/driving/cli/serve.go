package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep indexes up to date in the background",
	Long: `Watch datasources for changes and run the scheduler until interrupted.

Changed items are tracked as they happen. Pending items are indexed in
batches on the scheduler's interval, and queued server tasks are replayed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if watcher == nil && scheduler == nil {
		return errors.New("nothing to serve: no watcher or scheduler configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cmd)
}

// serve runs the watcher and the scheduler until ctx is done.
func serve(ctx context.Context, cmd *cobra.Command) error {
	if watcher != nil {
		if err := watcher.WatchDatasources(ctx); err != nil {
			return fmt.Errorf("watching datasources: %w", err)
		}
	}

	cmd.Println("Serving; press Ctrl+C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	if scheduler != nil {
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			return scheduler.Stop()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cmd.Println("Stopped.")
	return nil
}
