package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"indicator_backend/internal/app/di"
	"indicator_backend/internal/feature/indicator/domain/params"
	"indicator_backend/internal/feature/indicator/usecase"
	symboladapters "indicator_backend/internal/feature/symbollist/adapters"
	infradb "indicator_backend/internal/platform/db"
	"indicator_backend/internal/platform/logger"
	"indicator_backend/internal/platform/metrics"
	"indicator_backend/internal/shared/ratelimiter"
)

type options struct {
	symbols     []string
	market      string
	timeframes  []string
	kinds       []string
	periods     []int
	concurrency int
	purge       bool
	start       string
	end         string
	limit       int
	rate        int
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute and store indicator series for many symbols",

		// SilenceUsage is an option to silence usage when an error occurs.
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.symbols, "symbols", nil, "symbols to recompute (default: every active symbol)")
	f.StringVar(&opts.market, "market", "", "restrict the active symbol list to one market")
	f.StringSliceVar(&opts.timeframes, "timeframes", []string{"1d"}, "candle timeframes")
	f.StringSliceVar(&opts.kinds, "kind", []string{"SMA"}, "indicator kinds")
	f.IntSliceVar(&opts.periods, "periods", []int{20}, "indicator periods")
	f.IntVar(&opts.concurrency, "concurrency", 4, "series recomputed in parallel")
	f.BoolVar(&opts.purge, "purge", false, "delete stored values before recomputing")
	f.StringVar(&opts.start, "start", "", "first candle time (RFC3339)")
	f.StringVar(&opts.end, "end", "", "last candle time (RFC3339)")
	f.IntVar(&opts.limit, "limit", 0, "most recent candles per series (default 5000)")
	f.IntVar(&opts.rate, "rate", 0, "series started per minute, 0 for no limit")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall deadline")
	return cmd
}

func run(ctx context.Context, opts options) error {
	specs, err := buildSpecs(opts.kinds, opts.periods)
	if err != nil {
		return err
	}
	start, err := parseTime(opts.start)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := parseTime(opts.end)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}

	db, err := infradb.OpenDB(infradb.LoadConfigFromEnv())
	if err != nil {
		return err
	}
	market, err := di.NewMarket(di.MarketSource(), db)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics(nil)
	repo := di.NewIndicatorRepository(db, nil, di.LoadStoreConfig(), m)
	indicatorUC := di.NewIndicatorUsecase(market, repo, m)
	symbolRepo := symboladapters.NewSymbolRepository(db, opts.market)
	uc := usecase.NewRecomputeUsecase(indicatorUC, symbolRepo, ratelimiter.NewRateLimiter(opts.rate, time.Minute), opts.concurrency)

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	summary, err := uc.RecomputeAll(ctx, opts.symbols, opts.timeframes, specs, usecase.RecomputeOptions{
		Start: start,
		End:   end,
		Limit: opts.limit,
		Purge: opts.purge,
	})
	logrus.WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("recompute finished")
	return err
}

// buildSpecs pairs every kind with every period.
func buildSpecs(kinds []string, periods []int) ([]usecase.SeriesSpec, error) {
	specs := make([]usecase.SeriesSpec, 0, len(kinds)*len(periods))
	for _, k := range kinds {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		for _, p := range periods {
			if err := params.Validate(params.Params{Period: p}); err != nil {
				return nil, err
			}
			specs = append(specs, usecase.SeriesSpec{Kind: k, Params: params.Params{Period: p}})
		}
	}
	return specs, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Info(".env not found; using system environment variables")
	}
	logger.Setup(logger.LoadConfig(), os.Stdout)

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("recompute failed")
	}
}
