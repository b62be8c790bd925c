// secfacts extracts balance sheet, income statement and cash flow data for a
// US-listed company from SEC Financial Statement Data Sets.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seenimoa/secfacts/api"
	"github.com/seenimoa/secfacts/internal/config"
	"github.com/seenimoa/secfacts/internal/fsds"
	"github.com/seenimoa/secfacts/internal/logging"
	"github.com/seenimoa/secfacts/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root PersistentPreRunE.
var (
	cfg *config.Config
	log *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes "nothing found" from operational failures so
// scripts can tell them apart.
func exitCode(err error) int {
	switch {
	case errors.Is(err, fsds.ErrTickerNotFound), errors.Is(err, fsds.ErrNoDataFound):
		return 2
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:   "secfacts",
	Short: "Financial statements from SEC Financial Statement Data Sets",
	Long: `secfacts resolves a ticker to its SEC CIK, downloads the quarterly
Financial Statement Data Sets covering the requested window and assembles
balance sheet, income statement and cash flow tables from 10-K or 10-Q filings.

SEC requires a contact email in the User-Agent of every request. Set it with
sec.email in config.yaml or the SEC_EMAIL environment variable.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; a missing file is not an error.
		_ = godotenv.Load()

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		log, err = logging.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
		if err != nil {
			log.Warn(err.Error())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statementsCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// buildStack validates the SEC identity and wires the pipeline.
func buildStack() (*fsds.Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return fsds.Build(cfg, log)
}

// signalContext is cancelled on SIGINT/SIGTERM so long downloads stop
// between dataset periods.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("secfacts %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Statements Command ---

var statementsCmd = &cobra.Command{
	Use:   "statements [ticker]",
	Short: "Extract financial statements for a company",
	Long: `Extract balance sheet, income statement and cash flow rows for a ticker.

Examples:
  secfacts statements AAPL
  secfacts statements brk.b --frequency quarterly --years 2
  secfacts statements MSFT --years 3 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		freqFlag, _ := cmd.Flags().GetString("frequency")
		years, _ := cmd.Flags().GetInt("years")
		format, _ := cmd.Flags().GetString("format")
		asOfFlag, _ := cmd.Flags().GetString("as-of")

		freq, err := models.ParseFrequency(freqFlag)
		if err != nil {
			return err
		}
		out, err := newPrinter(format, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		asOf, err := parseAsOf(asOfFlag)
		if err != nil {
			return err
		}

		st, err := buildStack()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		res, err := st.Service.Run(ctx, fsds.Request{
			Ticker:    args[0],
			Frequency: freq,
			Years:     years,
			AsOf:      asOf,
		})
		if res != nil {
			if perr := out.Result(res); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	statementsCmd.Flags().StringP("frequency", "f", "annual", "annual (10-K) or quarterly (10-Q)")
	statementsCmd.Flags().IntP("years", "y", 1, "years of history, 1 to 5")
	statementsCmd.Flags().String("format", "table", "output format: table, json or yaml")
	statementsCmd.Flags().String("as-of", "", "plan from this date (YYYY-MM-DD) instead of today")
}

// --- Resolve Command ---

var resolveCmd = &cobra.Command{
	Use:   "resolve [ticker]",
	Short: "Resolve a ticker to its SEC CIK and list similar names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		st, err := buildStack()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		w := cmd.OutOrStdout()
		filer, rerr := st.Resolver.Resolve(ctx, args[0])
		if rerr != nil && !errors.Is(rerr, fsds.ErrTickerNotFound) {
			return rerr
		}
		if rerr == nil {
			fmt.Fprintf(w, "%s  CIK %s  %s\n\n", filer.Ticker, filer.PaddedCIK(), filer.Name)
		}

		matches, err := st.Resolver.Lookup(ctx, args[0], limit)
		if err != nil {
			return err
		}
		printFilers(w, matches)
		return rerr
	},
}

func init() {
	resolveCmd.Flags().Int("limit", 10, "maximum number of similar entries to list")
}

// --- Plan Command ---

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "List the dataset archives a statements request would read",
	RunE: func(cmd *cobra.Command, args []string) error {
		freqFlag, _ := cmd.Flags().GetString("frequency")
		years, _ := cmd.Flags().GetInt("years")
		asOfFlag, _ := cmd.Flags().GetString("as-of")

		freq, err := models.ParseFrequency(freqFlag)
		if err != nil {
			return err
		}
		asOf, err := parseAsOf(asOfFlag)
		if err != nil {
			return err
		}
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}

		periods, err := fsds.Plan(freq, years, asOf)
		if err != nil {
			return err
		}
		// URL construction needs no identity, so skip validation here.
		st, err := fsds.Build(cfg, log)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(periods) == 0 {
			fmt.Fprintf(w, "no datasets published before %s\n", asOf.Format("2006-01-02"))
			return nil
		}
		for _, p := range periods {
			fmt.Fprintf(w, "%-8s %s\n", p, st.Fetcher.URL(p))
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringP("frequency", "f", "annual", "annual (10-K) or quarterly (10-Q)")
	planCmd.Flags().IntP("years", "y", 1, "years of history, 1 to 5")
	planCmd.Flags().String("as-of", "", "plan from this date (YYYY-MM-DD) instead of today")
}

// --- Datasets Command ---

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the dataset archives SEC has published",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := buildStack()
		if err != nil {
			return err
		}
		if st.Catalog == nil {
			return errors.New("sec.catalog_url is not configured")
		}
		ctx, cancel := signalContext()
		defer cancel()

		periods, err := st.Catalog.Available(ctx)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, p := range periods {
			fmt.Fprintf(w, "%-8s %s\n", p, st.Fetcher.URL(p))
		}
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		st, err := buildStack()
		if err != nil {
			return err
		}
		api.Version = version
		return api.NewServer(cfg, st, log).ListenAndServe(cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "listen port (overrides api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and SEC identity status",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "═══════════════════════════════════════")
		fmt.Fprintln(w, "  secfacts — System Status")
		fmt.Fprintln(w, "═══════════════════════════════════════")
		fmt.Fprintf(w, "  Version:        %s (%s)\n", version, commit)
		fmt.Fprintln(w)

		fmt.Fprintln(w, "  Configuration:")
		fmt.Fprintf(w, "    Datasets:       %s\n", cfg.SEC.DatasetsURL)
		fmt.Fprintf(w, "    Tickers:        %s\n", cfg.SEC.TickersURL)
		fmt.Fprintf(w, "    Min interval:   %s\n", cfg.SEC.MinInterval())
		fmt.Fprintf(w, "    Failure policy: %s\n", cfg.Pipeline.FailurePolicy)
		fmt.Fprintf(w, "    Dataset TTL:    %s\n", cfg.Cache.DatasetTTL)
		if cfg.Cache.Dir != "" {
			fmt.Fprintf(w, "    Cache dir:      %s\n", cfg.Cache.Dir)
		}
		fmt.Fprintf(w, "    API Server:     %s\n", cfg.API.Addr())
		fmt.Fprintln(w)

		fmt.Fprintln(w, "  SEC Identity:")
		for _, k := range config.CheckIdentity(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Fprintf(w, "    %-20s %s\n", k.Name+":", status)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(w, "\n  ⚠️  %v\n", err)
		}

		fmt.Fprintln(w, "═══════════════════════════════════════")
		return nil
	},
}

func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}
