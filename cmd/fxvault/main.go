// fxvault — rate snapshot vault for fiat, metals, and crypto.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/fxvault/api"
	"github.com/seenimoa/fxvault/internal/backfill"
	"github.com/seenimoa/fxvault/internal/config"
	"github.com/seenimoa/fxvault/internal/forex"
	"github.com/seenimoa/fxvault/internal/infra"
	"github.com/seenimoa/fxvault/internal/poller"
	"github.com/seenimoa/fxvault/internal/providers/beacon"
	"github.com/seenimoa/fxvault/internal/providers/openexchange"
	"github.com/seenimoa/fxvault/internal/storage"
	"github.com/seenimoa/fxvault/pkg/money"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fxvault",
	Short: "fxvault — local vault for FX, metal, and crypto rate snapshots",
	Long: `fxvault polls exchange rates from upstream providers, archives them as
daily JSON snapshots on local disk, and answers conversion and timeseries
queries from the archive without further provider calls.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
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
		setupLogger(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(timeseriesCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogger installs the configured slog handler as the process default.
func setupLogger(lc config.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openStore opens the snapshot store at the configured root.
func openStore() (*storage.FileStore, error) {
	return storage.NewFileStore(cfg.Storage.Root)
}

// baseCurrency resolves the configured snapshot base.
func baseCurrency() (money.Currency, error) {
	return money.ParseCurrency(cfg.Forex.BaseCurrency)
}

// providerLimiters holds one token bucket per upstream, so the poller,
// backfill runs, and one-shot commands all draw from the same per-provider
// budget even when latest and history share a provider.
var providerLimiters = map[string]*infra.RateLimiter{}

func providerLimiter(name string) *infra.RateLimiter {
	if rl, ok := providerLimiters[name]; ok {
		return rl
	}
	rl := infra.NewRateLimiter(cfg.Backfill.RateLimit, time.Second)
	providerLimiters[name] = rl
	return rl
}

// latestSource builds the provider configured for latest-rate polls.
func latestSource() (forex.RateSource, error) {
	switch cfg.Forex.LatestProvider {
	case "openexchange":
		return openexchange.New(cfg.Forex.OpenExchangeKey,
			openexchange.WithRateLimiter(providerLimiter("openexchange"))), nil
	case "beacon":
		return beacon.New(cfg.Forex.BeaconKey,
			beacon.WithRateLimiter(providerLimiter("beacon"))), nil
	default:
		return nil, fmt.Errorf("unknown latest provider %q", cfg.Forex.LatestProvider)
	}
}

// historySource builds the provider configured for historical fetches.
func historySource() (forex.HistoricalRateSource, error) {
	switch cfg.Forex.HistoryProvider {
	case "openexchange":
		return openexchange.New(cfg.Forex.OpenExchangeKey,
			openexchange.WithRateLimiter(providerLimiter("openexchange"))), nil
	case "beacon":
		return beacon.New(cfg.Forex.BeaconKey,
			beacon.WithRateLimiter(providerLimiter("beacon"))), nil
	default:
		return nil, fmt.Errorf("unknown history provider %q", cfg.Forex.HistoryProvider)
	}
}

// printJSON renders command output as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q, want YYYY-MM-DD", name, raw)
	}
	return &d, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fxvault %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  fxvault — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:        %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Storage Root:     %s\n", cfg.Storage.Root)
		fmt.Printf("    Base Currency:    %s\n", cfg.Forex.BaseCurrency)
		fmt.Printf("    Latest Provider:  %s\n", cfg.Forex.LatestProvider)
		fmt.Printf("    History Provider: %s\n", cfg.Forex.HistoryProvider)
		fmt.Printf("    API Server:       %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-30s %s\n", k.Name+":", status)
		}

		// Latest stored snapshot, if any
		if store, err := openStore(); err == nil {
			if latest, err := store.GetLatest(cmd.Context()); err == nil {
				fmt.Println()
				fmt.Printf("  Latest Snapshot:  %s (source: %s)\n",
					latest.Data.LatestUpdate.Format(time.RFC3339), latest.Source)
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- Rates Command ---

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show stored rates (latest or one date)",
	Long: `Show the stored rate snapshot for the given base currency.

Examples:
  fxvault rates
  fxvault rates --base EUR
  fxvault rates --date 2024-02-15`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		baseCode, _ := cmd.Flags().GetString("base")
		if baseCode == "" {
			baseCode = cfg.Forex.BaseCurrency
		}
		base, err := money.ParseCurrency(baseCode)
		if err != nil {
			return err
		}
		date, err := parseDateFlag(cmd, "date")
		if err != nil {
			return err
		}

		resp, err := forex.GetRates(cmd.Context(), store, base, date)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

func init() {
	ratesCmd.Flags().String("base", "", "base currency (default: configured base)")
	ratesCmd.Flags().String("date", "", "historical date YYYY-MM-DD (default: latest)")
}

// --- Convert Command ---

var convertCmd = &cobra.Command{
	Use:   "convert [money] [currency]",
	Short: "Convert an amount into another currency using stored rates",
	Long: `Convert a money amount into a target currency using stored rates.

Examples:
  fxvault convert "USD 1,234.56" IDR
  fxvault convert "IDR 45.000.000" USD --date 2024-02-15`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		from, err := money.Parse(args[0])
		if err != nil {
			return err
		}
		to, err := money.ParseCurrency(args[1])
		if err != nil {
			return err
		}
		date, err := parseDateFlag(cmd, "date")
		if err != nil {
			return err
		}

		var conv forex.ConversionResponse
		if date == nil {
			conv, err = forex.ConvertLatest(cmd.Context(), store, from, to)
		} else {
			conv, err = forex.ConvertHistorical(cmd.Context(), store, from, to, *date)
		}
		if err != nil {
			return err
		}
		return printJSON(conv)
	},
}

func init() {
	convertCmd.Flags().String("date", "", "historical date YYYY-MM-DD (default: latest)")
}

// --- Timeseries Command ---

var timeseriesCmd = &cobra.Command{
	Use:   "timeseries",
	Short: "Show or fetch historical rates for a date range",
	Long: `Show the stored historical rates for a date range.

With --fetch, the range is first pulled from the history provider in a
single timeseries request and stored, replacing any existing records for
the returned days. Requires a provider with timeseries support.

Examples:
  fxvault timeseries --start 2024-01-01 --end 2024-01-31
  fxvault timeseries --start 2024-01-01 --end 2024-01-31 --fetch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		start, err := parseDateFlag(cmd, "start")
		if err != nil {
			return err
		}
		end, err := parseDateFlag(cmd, "end")
		if err != nil {
			return err
		}
		if start == nil || end == nil {
			return fmt.Errorf("--start and --end are required")
		}

		if fetch, _ := cmd.Flags().GetBool("fetch"); fetch {
			src, err := historySource()
			if err != nil {
				return err
			}
			ts, ok := src.(forex.TimeseriesRateSource)
			if !ok {
				return fmt.Errorf("history provider %q does not support timeseries fetches", cfg.Forex.HistoryProvider)
			}
			base, err := baseCurrency()
			if err != nil {
				return err
			}
			records, err := forex.ImportTimeseries(cmd.Context(), ts, store, *start, *end, base)
			if err != nil {
				return err
			}
			return printJSON(records)
		}

		records, err := store.GetHistoricalRange(cmd.Context(), *start, *end)
		if err != nil {
			return err
		}
		return printJSON(records)
	},
}

func init() {
	timeseriesCmd.Flags().String("start", "", "range start YYYY-MM-DD")
	timeseriesCmd.Flags().String("end", "", "range end YYYY-MM-DD")
	timeseriesCmd.Flags().Bool("fetch", false, "pull the range from the history provider and store it first")
}

// --- Poll Command ---

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll the provider once and store the snapshot",
	Long: `Poll upstream rates once and persist the result.

Without --date, fetches and stores the latest rates. With --date, fetches
and stores that day's end-of-day rates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		base, err := baseCurrency()
		if err != nil {
			return err
		}
		date, err := parseDateFlag(cmd, "date")
		if err != nil {
			return err
		}

		if date == nil {
			src, err := latestSource()
			if err != nil {
				return err
			}
			resp, err := forex.PollRates(cmd.Context(), src, store, base)
			if err != nil {
				return err
			}
			return printJSON(resp)
		}

		src, err := historySource()
		if err != nil {
			return err
		}
		resp, err := forex.PollHistoricalRates(cmd.Context(), src, store, *date, base)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

func init() {
	pollCmd.Flags().String("date", "", "end-of-day date YYYY-MM-DD (default: latest rates)")
}

// --- Backfill Command ---

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill historical snapshots for a weekday range",
	Long: `Fetch end-of-day snapshots for every weekday in a date range, batch by
batch, staying inside the provider's remaining request quota.

Example:
  fxvault backfill --from 2024-01-01 --to 2024-03-31`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		base, err := baseCurrency()
		if err != nil {
			return err
		}
		src, err := historySource()
		if err != nil {
			return err
		}

		from, err := parseDateFlag(cmd, "from")
		if err != nil {
			return err
		}
		to, err := parseDateFlag(cmd, "to")
		if err != nil {
			return err
		}
		if from == nil || to == nil {
			return fmt.Errorf("--from and --to are required")
		}

		quota, _ := cmd.Flags().GetInt("quota")
		if quota == 0 {
			// Ask the provider when it can report its own usage.
			if qs, ok := src.(forex.QuotaSource); ok {
				remaining, err := qs.QuotaRemaining(cmd.Context())
				if err != nil {
					return fmt.Errorf("query provider quota: %w", err)
				}
				quota = remaining - cfg.Backfill.QuotaFloor
			}
		}

		coord := backfill.NewCoordinator(src, store, slog.Default())
		report, err := coord.Run(cmd.Context(), backfill.Params{
			From:           *from,
			To:             *to,
			Base:           base,
			QuotaRemaining: quota,
			RateLimit:      cfg.Backfill.RateLimit,
			BatchCooldown:  time.Duration(cfg.Backfill.BatchCooldownSec) * time.Second,
		})
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	backfillCmd.Flags().String("from", "", "range start YYYY-MM-DD")
	backfillCmd.Flags().String("to", "", "range end YYYY-MM-DD")
	backfillCmd.Flags().Int("quota", 0, "request budget override (default: ask the provider)")
}

// --- Patch Command ---

var patchCmd = &cobra.Command{
	Use:   "patch [date] [currency...]",
	Short: "Re-fetch selected rates for one stored day",
	Long: `Re-fetch one day's rates from the provider and overwrite only the named
currencies in the stored record. Useful when a provider later corrects
metal or crypto fixes.

Example:
  fxvault patch 2024-02-15 XAU XAG BTC`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		src, err := historySource()
		if err != nil {
			return err
		}

		day, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", args[0])
		}

		currencies := make([]money.Currency, 0, len(args)-1)
		for _, code := range args[1:] {
			c, err := money.ParseCurrency(code)
			if err != nil {
				return err
			}
			currencies = append(currencies, c)
		}

		resp, err := forex.UpdateHistoricalRatesData(cmd.Context(), src, store, day, currencies)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and background poller",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		base, err := baseCurrency()
		if err != nil {
			return err
		}
		latest, err := latestSource()
		if err != nil {
			return err
		}
		historical, err := historySource()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		p := poller.New(latest, historical, store, base,
			time.Duration(cfg.Poller.LatestIntervalSec)*time.Second,
			cfg.Poller.DailyAt, slog.Default())
		if err := p.Start(ctx); err != nil {
			return err
		}
		defer p.Stop()

		api.Version = version
		srv := api.NewServer(cfg, store, slog.Default())
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		slog.Info("starting fxvault API server", "addr", addr)
		return srv.ListenAndServe(addr)
	},
}
