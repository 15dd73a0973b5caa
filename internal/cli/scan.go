package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/0x6d61/wpleech/internal/engine"
	"github.com/0x6d61/wpleech/internal/report"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Fingerprint a site and report its plugins and their vulnerabilities",
	Long: `Scan checks whether the target runs WordPress, enumerates its plugins from
homepage references and the top candidate slugs, and correlates every plugin
found with the WordPress.org registry and the WPScan API (when a token is set).`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("url", "u", "", "Target URL (e.g. https://example.com)")
	scanCmd.Flags().IntP("level", "l", int(engine.DefaultScanLevel), "Number of top candidate slugs to probe (-1 = all)")
}

// runScan wires the full pipeline:
// transport → fingerprint → enumeration → vulnerability resolution → report.
func runScan(cmd *cobra.Command, args []string) error {
	stderr := cmd.ErrOrStderr()
	fmt.Fprintln(stderr, "[!] Legal disclaimer: Usage of wpleech against targets without prior mutual consent is illegal.")

	// ------------------------------------------------------------------ //
	// 1. Read flags
	// ------------------------------------------------------------------ //
	targetURL, _ := cmd.Flags().GetString("url")
	if targetURL == "" {
		return fmt.Errorf("target URL is required (use --url or -u)")
	}
	verbose, _ := cmd.Flags().GetInt("verbose")
	format, _ := cmd.Flags().GetString("format")

	target, err := engine.NewScanTarget(targetURL)
	if err != nil {
		return err
	}

	reporter, err := report.New(format)
	if err != nil {
		return err
	}
	if tr, ok := reporter.(*report.TextReporter); ok {
		tr.Verbose = verbose
	}

	logger := newLogger(stderr, verbose)

	// ------------------------------------------------------------------ //
	// 2. Build transport and candidate source
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

	// ------------------------------------------------------------------ //
	// 3. Build scanner
	// ------------------------------------------------------------------ //
	scanner := buildScanner(cmd, client, slugProvider(cmd, store), logger)
	if verbose > 0 {
		scanner.SetProgressCallback(func(msg string) {
			fmt.Fprintf(stderr, "[*] %s\n", msg)
		})
	}

	// ------------------------------------------------------------------ //
	// 4. Run scan (Ctrl+C cancels)
	// ------------------------------------------------------------------ //
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := scanner.Scan(ctx, target)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	// ------------------------------------------------------------------ //
	// 5. Write report
	// ------------------------------------------------------------------ //
	out, closeOut, err := openOutput(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := reporter.Generate(ctx, result, out); err != nil {
		closeOut()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return closeOut()
}

