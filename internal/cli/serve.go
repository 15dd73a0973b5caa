package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/0x6d61/wpleech/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (scans and plugin list builds)",
	Long: `Serve exposes POST /scan, the /builder/jobs routes for background plugin
list builds, and a WebSocket stream of build progress at /ws/builder/jobs/{id}.
A finished build refreshes the candidate list used by subsequent scans.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	verbose, _ := cmd.Flags().GetInt("verbose")

	// Request logs are emitted at info level.
	logger := newLogger(cmd.ErrOrStderr(), max(verbose, 2))

	client, err := newClient(cmd)
	if err != nil {
		return err
	}

	store, err := openSlugStore(cmd)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	pruneJobs(cmd.Context(), cmd, store, logger)

	provider := slugProvider(cmd, store)
	srv, err := server.NewServer(server.Config{
		ListenAddr: listen,
		Scanner:    buildScanner(cmd, client, provider, logger),
		Builder:    buildListBuilder(cmd, client, store, provider, logger),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpServer := srv.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
