package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/0x6d61/wpleech/internal/detector"
	"github.com/0x6d61/wpleech/internal/engine"
	"github.com/0x6d61/wpleech/internal/fingerprint"
	"github.com/0x6d61/wpleech/internal/slugs"
	"github.com/0x6d61/wpleech/internal/transport"
	"github.com/0x6d61/wpleech/internal/vulndb"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "wpleech",
	Short: "WordPress fingerprinting and plugin vulnerability scanner",
	Long: `wpleech - WordPress fingerprinting and plugin vulnerability scanner

Detects whether a site runs WordPress, enumerates its installed plugins from
page references and a candidate slug list, and correlates each plugin with
the WordPress.org registry and (optionally) the WPScan vulnerability API.

WARNING: Use this tool only against systems you have explicit permission to test.
Unauthorized access to computer systems is illegal.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Connection flags
	rootCmd.PersistentFlags().String("proxy", "", "Proxy URL (http://host:port or socks5://host:port)")
	rootCmd.PersistentFlags().Duration("timeout", transport.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().Bool("random-agent", false, "Use random User-Agent")

	// Output flags
	rootCmd.PersistentFlags().IntP("verbose", "v", 0, "Verbosity level (0-3)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "Output format (text, json)")

	// Concurrency
	rootCmd.PersistentFlags().Int("probe-workers", 20, "Concurrent plugin probes")
	rootCmd.PersistentFlags().Int("vuln-workers", 10, "Concurrent vulnerability lookups")

	// Candidate list
	rootCmd.PersistentFlags().String("plugin-list", slugs.DefaultListFile, "Candidate plugin list file")
	rootCmd.PersistentFlags().String("slug-db", "", "SQLite database holding the candidate list and build jobs")
	rootCmd.PersistentFlags().Duration("job-retention", defaultJobRetention, "Prune build job records older than this from --slug-db (0 keeps all)")

	// Vulnerability sources
	rootCmd.PersistentFlags().String("wpscan-token", "", "WPScan API token (falls back to $"+vulndb.TokenEnv+")")
	rootCmd.PersistentFlags().String("registry-url", vulndb.DefaultRegistryURL, "WordPress.org API base URL")
	rootCmd.PersistentFlags().String("wpscan-url", vulndb.DefaultWPScanURL, "WPScan API base URL")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wpleech %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// --------------------------------------------------------------------------
// Shared wiring
// --------------------------------------------------------------------------

// newLogger builds the stderr logger for a verbosity level:
// 0 error, 1 warn, 2 info, 3 debug.
func newLogger(w io.Writer, verbose int) *slog.Logger {
	level := slog.LevelError
	switch {
	case verbose >= 3:
		level = slog.LevelDebug
	case verbose == 2:
		level = slog.LevelInfo
	case verbose == 1:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newClient builds the transport client from the connection flags.
func newClient(cmd *cobra.Command) (*transport.DefaultClient, error) {
	proxyURL, _ := cmd.Flags().GetString("proxy")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	randomAgent, _ := cmd.Flags().GetBool("random-agent")

	client, err := transport.NewClient(transport.ClientOptions{
		Timeout:         timeout,
		ProxyURL:        proxyURL,
		RandomUserAgent: randomAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, nil
}

// openSlugStore opens the --slug-db store, or returns nil when unset.
func openSlugStore(cmd *cobra.Command) (*slugs.SQLiteStore, error) {
	path, _ := cmd.Flags().GetString("slug-db")
	if path == "" {
		return nil, nil
	}
	store, err := slugs.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open slug database %q: %w", path, err)
	}
	return store, nil
}

// pruneJobs drops build job records older than --job-retention.
func pruneJobs(ctx context.Context, cmd *cobra.Command, store *slugs.SQLiteStore, logger *slog.Logger) {
	retention, _ := cmd.Flags().GetDuration("job-retention")
	if store == nil || retention <= 0 {
		return
	}
	deleted, err := store.Cleanup(ctx, retention)
	if err != nil {
		logger.Warn("pruning build jobs", "error", err)
		return
	}
	if deleted > 0 {
		logger.Info("pruned build jobs", "deleted", deleted, "retention", retention)
	}
}

// slugProvider picks the candidate source: the SQLite store when one is
// open, otherwise the list file. Either way it is cached per process.
func slugProvider(cmd *cobra.Command, store *slugs.SQLiteStore) *slugs.Cache {
	if store != nil {
		return slugs.NewCache(store)
	}
	path, _ := cmd.Flags().GetString("plugin-list")
	return slugs.NewCache(slugs.NewFileProvider(path))
}

// buildScanner creates an engine.Scanner wired with all real implementations:
// the fingerprint detector, the plugin prober, the homepage parsers and the
// two-tier vulnerability resolver.
func buildScanner(cmd *cobra.Command, client transport.Client, provider slugs.Provider, logger *slog.Logger) *engine.Scanner {
	probeWorkers, _ := cmd.Flags().GetInt("probe-workers")
	vulnWorkers, _ := cmd.Flags().GetInt("vuln-workers")

	cfg := engine.DefaultScanConfig()
	cfg.ProbeWorkers = probeWorkers
	cfg.ResolveWorkers = vulnWorkers
	if cmd.Flags().Lookup("level") != nil {
		level, _ := cmd.Flags().GetInt("level")
		cfg.Level = engine.ScanLevel(level)
	}

	return engine.NewScanner(client, cfg,
		engine.WithDetector(fingerprint.NewDetector(client, fingerprint.WithLogger(logger)).Detect),
		engine.WithProber(detector.NewProber(client).Probe),
		engine.WithSlugExtractor(detector.ExtractPluginSlugs),
		engine.WithAssetVersionExtractor(detector.ExtractAssetVersions),
		engine.WithSlugProvider(provider),
		engine.WithResolver(buildResolver(cmd, client, logger).Resolve),
		engine.WithLogger(logger),
	)
}

// wpscanToken returns the --wpscan-token value, or the environment token when
// the flag was not given. An explicit empty flag disables the WPScan tier.
func wpscanToken(cmd *cobra.Command) string {
	if cmd.Flags().Changed("wpscan-token") {
		token, _ := cmd.Flags().GetString("wpscan-token")
		return token
	}
	return os.Getenv(vulndb.TokenEnv)
}

func buildResolver(cmd *cobra.Command, client transport.Client, logger *slog.Logger) *vulndb.Resolver {
	token := wpscanToken(cmd)
	registryURL, _ := cmd.Flags().GetString("registry-url")
	wpscanURL, _ := cmd.Flags().GetString("wpscan-url")

	return vulndb.NewResolver(
		vulndb.NewRegistryClient(client, registryURL),
		vulndb.NewWPScanClient(client, wpscanURL, token),
		vulndb.WithLogger(logger),
	)
}

// buildListBuilder creates the plugin list builder. The list is published
// to the --plugin-list file, and to the slug store when one is open.
func buildListBuilder(cmd *cobra.Command, client transport.Client, store *slugs.SQLiteStore, extra slugs.Sink, logger *slog.Logger, extraOpts ...slugs.BuilderOption) *slugs.Builder {
	path, _ := cmd.Flags().GetString("plugin-list")
	registryURL, _ := cmd.Flags().GetString("registry-url")

	sinks := slugs.MultiSink{slugs.NewFileSink(path), extra}
	opts := []slugs.BuilderOption{
		slugs.WithRegistryURL(registryURL),
		slugs.WithBuilderLogger(logger),
	}
	if store != nil {
		sinks = append(sinks, store)
		opts = append(opts, slugs.WithJobStore(store))
	}
	opts = append(opts, extraOpts...)
	return slugs.NewBuilder(client, sinks, opts...)
}

// openOutput returns the --output file, or fallback when unset. The returned
// closer is always safe to call.
func openOutput(cmd *cobra.Command, fallback io.Writer) (io.Writer, func() error, error) {
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %q: %w", outputPath, err)
	}
	return f, f.Close, nil
}

// shutdownTimeout bounds graceful server shutdown.
const shutdownTimeout = 10 * time.Second

// defaultJobRetention is how long build job records are kept.
const defaultJobRetention = 30 * 24 * time.Hour
