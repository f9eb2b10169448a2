package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"indicator_backend/internal/feature/indicator/domain"
	"indicator_backend/internal/feature/indicator/domain/entity"
	"indicator_backend/internal/feature/indicator/domain/params"
)

const (
	defaultRecomputeConcurrency = 4
	defaultMaxRetries           = 3
)

// Recomputer is the part of IndicatorUsecase the batch job drives.
type Recomputer interface {
	RecomputeAndStore(ctx context.Context, req RecomputeRequest) ([]entity.Point, error)
	PurgeSeries(ctx context.Context, symbol, timeframe, kindName string, p params.Params) (int64, error)
}

// SymbolLister supplies the default symbol universe of a batch.
type SymbolLister interface {
	ListActiveCodes(ctx context.Context) ([]string, error)
}

// Limiter throttles market data requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// SeriesSpec selects one indicator configuration to recompute.
type SeriesSpec struct {
	Kind   string
	Params params.Params
}

// RecomputeOptions apply to every series of a batch.
type RecomputeOptions struct {
	Start *time.Time
	End   *time.Time
	Limit int
	// Purge drops the stored series before recomputing it.
	Purge bool
}

// RecomputeSummary counts batch outcomes.
type RecomputeSummary struct {
	Succeeded int64
	Skipped   int64 // not enough candles yet
	Failed    int64
}

// RecomputeUsecase recomputes many series at once. Different series are
// independent, so they run concurrently up to a fixed limit.
type RecomputeUsecase struct {
	svc         Recomputer
	symbols     SymbolLister
	limiter     Limiter
	concurrency int
	newBackOff  func() backoff.BackOff
}

// NewRecomputeUsecase creates a RecomputeUsecase. symbols may be nil when every
// batch names its symbols. concurrency <= 0 uses the default.
func NewRecomputeUsecase(svc Recomputer, symbols SymbolLister, limiter Limiter, concurrency int) *RecomputeUsecase {
	if concurrency <= 0 {
		concurrency = defaultRecomputeConcurrency
	}
	return &RecomputeUsecase{
		svc:         svc,
		symbols:     symbols,
		limiter:     limiter,
		concurrency: concurrency,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return backoff.WithMaxRetries(b, defaultMaxRetries)
		},
	}
}

// RecomputeAll recomputes every symbol × timeframe × spec combination.
// An empty symbols list means every active symbol. One failing series does
// not stop the others; failures are combined into the returned error.
func (u *RecomputeUsecase) RecomputeAll(ctx context.Context, symbols, timeframes []string, specs []SeriesSpec, opts RecomputeOptions) (RecomputeSummary, error) {
	symbols, err := u.resolveSymbols(ctx, symbols)
	if err != nil {
		return RecomputeSummary{}, err
	}
	if len(timeframes) == 0 || len(specs) == 0 {
		return RecomputeSummary{}, domain.NewInvalidParameter(domain.ReasonMalformed, "at least one timeframe and one indicator are required")
	}

	var (
		summary RecomputeSummary
		mu      sync.Mutex
		errs    error
		g       errgroup.Group
	)
	g.SetLimit(u.concurrency)

	for _, s := range symbols {
		for _, tf := range timeframes {
			for _, spec := range specs {
				req := RecomputeRequest{
					Symbol:    s,
					Timeframe: tf,
					Kind:      spec.Kind,
					Params:    spec.Params,
					Start:     opts.Start,
					End:       opts.End,
					Limit:     opts.Limit,
				}
				g.Go(func() error {
					err := u.recomputeOne(ctx, req, opts.Purge)
					switch {
					case err == nil:
						atomic.AddInt64(&summary.Succeeded, 1)
					case errors.Is(err, domain.ErrInsufficientData):
						atomic.AddInt64(&summary.Skipped, 1)
						log.WithFields(fields(req)).WithError(err).Warn("skipping series without enough candles")
					default:
						atomic.AddInt64(&summary.Failed, 1)
						log.WithFields(fields(req)).WithError(err).Error("failed to recompute series")
						mu.Lock()
						errs = multierr.Append(errs, fmt.Errorf("%s/%s %s%s: %w", req.Symbol, req.Timeframe, req.Kind, specID(req), err))
						mu.Unlock()
					}
					return nil
				})
			}
		}
	}
	_ = g.Wait()
	return summary, errs
}

func (u *RecomputeUsecase) resolveSymbols(ctx context.Context, symbols []string) ([]string, error) {
	if len(symbols) > 0 {
		return symbols, nil
	}
	if u.symbols == nil {
		return nil, domain.NewInvalidParameter(domain.ReasonMalformed, "no symbols given and no symbol source configured")
	}
	codes, err := u.symbols.ListActiveCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active symbols: %w", err)
	}
	if len(codes) == 0 {
		return nil, domain.NewInvalidParameter(domain.ReasonMalformed, "no active symbols")
	}
	log.WithField("symbols", len(codes)).Info("recomputing every active symbol")
	return codes, nil
}

func (u *RecomputeUsecase) recomputeOne(ctx context.Context, req RecomputeRequest, purge bool) error {
	if err := u.limiter.Wait(ctx); err != nil {
		return err
	}

	op := func() error {
		if purge {
			if _, err := u.svc.PurgeSeries(ctx, req.Symbol, req.Timeframe, req.Kind, req.Params); err != nil {
				return retryable(err)
			}
		}
		_, err := u.svc.RecomputeAndStore(ctx, req)
		return retryable(err)
	}
	notify := func(err error, wait time.Duration) {
		log.WithFields(fields(req)).WithError(err).WithField("retry_in", wait).Warn("store unavailable, retrying")
	}
	return backoff.RetryNotify(op, backoff.WithContext(u.newBackOff(), ctx), notify)
}

// retryable marks everything except store outages as permanent.
func retryable(err error) error {
	if err == nil || errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return backoff.Permanent(err)
}

func fields(req RecomputeRequest) logrus.Fields {
	return logrus.Fields{
		"symbol":    req.Symbol,
		"timeframe": req.Timeframe,
		"kind":      req.Kind,
		"period":    req.Params.Period,
	}
}

func specID(req RecomputeRequest) string {
	if id, err := params.Canonicalize(req.Params); err == nil {
		return id
	}
	return fmt.Sprintf("(period=%d)", req.Params.Period)
}
