package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"futuresProxy/config"
	"futuresProxy/internal/adapters/binanceclient"
	"futuresProxy/internal/adapters/binancerest"
	"futuresProxy/internal/adapters/logger"
	"futuresProxy/internal/analytics"
	"futuresProxy/internal/app"
	"futuresProxy/internal/ports"
	"futuresProxy/internal/ratelimit"
	"futuresProxy/internal/symbols"
	"futuresProxy/internal/utils"
)

type options struct {
	startTime int64
	format    string
	out       string
	stats     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "position_summary",
		Short: "Reconcile realized PnL with order history for the configured account",
		Long: "Fetches realized PnL events for BINANCE_API_KEY/BINANCE_API_SECRET, " +
			"correlates each with its opening and closing orders and prints the summaries.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int64Var(&opts.startTime, "start-time", 0, "only include events at or after this epoch-millis timestamp")
	cmd.Flags().StringVar(&opts.format, "format", "json", "output format: json or csv")
	cmd.Flags().StringVar(&opts.out, "out", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print aggregate performance (JSON) instead of the summaries")

	return cmd
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	if opts.format != "json" && opts.format != "csv" {
		return fmt.Errorf("unsupported format %q", opts.format)
	}
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	creds := ports.Credentials{APIKey: cfg.APIKey, APISecret: cfg.SecretKey}
	if !creds.Complete() {
		return fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET must be set: %w", ports.ErrMissingCredentials)
	}

	// 2. Initialize Logger; stderr keeps stdout clean for the report
	appLogger := logger.NewWriterLogger(os.Stderr, cfg.LogLevel)

	// 3. Exchange adapters
	catalog, err := binanceclient.New(binanceclient.Config{
		BaseURL:    cfg.BaseURL,
		UseTestnet: cfg.IsTestnet,
		Timeout:    cfg.HTTPTimeout,
		Logger:     appLogger,
	})
	if err != nil {
		return err
	}
	validator, err := symbols.NewValidator(symbols.Config{
		Catalog:  catalog,
		Logger:   appLogger,
		Attempts: cfg.SymbolLoadAttempts,
	})
	if err != nil {
		return err
	}
	if err := validator.Load(ctx); err != nil {
		return fmt.Errorf("loading symbol catalog: %w", err)
	}
	restClient, err := binancerest.New(binancerest.Config{
		BaseURL:    cfg.BaseURL,
		UseTestnet: cfg.IsTestnet,
		Timeout:    cfg.HTTPTimeout,
		RecvWindow: cfg.RecvWindow,
		Logger:     appLogger,
	})
	if err != nil {
		return err
	}

	// 4. Reconcile
	pacer, err := ratelimit.New(cfg.PacingMode, cfg.OrderPacing)
	if err != nil {
		return err
	}
	reconciler, err := app.NewPositionReconciler(app.ReconcilerConfig{
		IncomeLimit:    cfg.IncomeLimit,
		Lookback:       cfg.Lookback,
		MaxHistory:     cfg.MaxHistory,
		StrictMatching: cfg.StrictMatching,
	}, appLogger, restClient, validator, pacer, nil)
	if err != nil {
		return err
	}
	summaries, err := reconciler.Summarize(ctx, creds, opts.startTime)
	if err != nil {
		return err
	}
	appLogger.Info(ctx, "Position summaries built", map[string]interface{}{"count": len(summaries)})

	// 5. Output
	w := stdout
	if opts.out != "" {
		file, err := os.Create(opts.out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}

	if opts.stats {
		return writeJSON(w, analytics.AnalyzePerformance(summaries))
	}
	if opts.format == "csv" {
		return utils.WritePositionSummariesToCSV(summaries, w)
	}
	return writeJSON(w, summaries)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
