package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/0x6d61/wpleech/internal/slugs"
)

var buildListCmd = &cobra.Command{
	Use:   "build-list",
	Short: "Build the candidate plugin list from the WordPress.org directory",
	Long: `Build-list pages through the WordPress.org plugin directory and writes the
top plugins (by the chosen browse mode) to the candidate list file, and to the
slug database when --slug-db is set. Scans probe the list in order.`,
	RunE: runBuildList,
}

func init() {
	rootCmd.AddCommand(buildListCmd)
	buildListCmd.Flags().String("sort", string(slugs.SortPopular), "Directory browse mode (popular, new, updated, top-rated)")
	buildListCmd.Flags().Int("total", slugs.DefaultTotal, "Number of plugins to collect")
	buildListCmd.Flags().Duration("interval", slugs.DefaultPageInterval, "Delay between directory page requests (0 = no delay)")
}

func runBuildList(cmd *cobra.Command, args []string) error {
	// ------------------------------------------------------------------ //
	// 1. Read flags
	// ------------------------------------------------------------------ //
	sortFlag, _ := cmd.Flags().GetString("sort")
	total, _ := cmd.Flags().GetInt("total")
	interval, _ := cmd.Flags().GetDuration("interval")
	verbose, _ := cmd.Flags().GetInt("verbose")
	listPath, _ := cmd.Flags().GetString("plugin-list")

	mode, err := slugs.ParseSort(sortFlag)
	if err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	logger := newLogger(cmd.ErrOrStderr(), verbose)

	// ------------------------------------------------------------------ //
	// 2. Build transport, store and builder
	// ------------------------------------------------------------------ //
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

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	builder := buildListBuilder(cmd, client, store, nil, logger,
		slugs.WithLimiter(rate.NewLimiter(limit, 1)))

	// ------------------------------------------------------------------ //
	// 3. Run job, streaming progress (Ctrl+C cancels)
	// ------------------------------------------------------------------ //
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	job, err := builder.Start(ctx, mode, total)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "[*] Building plugin list (sort: %s, total: %d, job: %s)\n", job.Sort, job.Total, job.ID)

	go func() {
		select {
		case <-ctx.Done():
			job.Cancel()
		case <-job.Done():
		}
	}()

	for ev := range job.Events() {
		switch ev.Type {
		case slugs.JobEventProgress:
			fmt.Fprintf(stdout, "[*] Page %d/%d: %d plugins collected\n", ev.Page, ev.Pages, ev.Collected)
		case slugs.JobEventStatus:
			if verbose > 0 {
				fmt.Fprintf(stdout, "[*] Job %s\n", ev.Status)
			}
		}
	}

	if err := job.Wait(context.Background()); err != nil {
		return fmt.Errorf("plugin list build failed: %w", err)
	}

	fmt.Fprintf(stdout, "[+] Wrote %d plugins to %s\n", len(job.Entries()), listPath)
	return nil
}
