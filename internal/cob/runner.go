package cob

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LoanLister returns the loans a close-of-business run processes.
type LoanLister interface {
	ListActiveLoanIDs(ctx context.Context) ([]string, error)
}

// Amortizer runs the capitalized income step for one loan.
type Amortizer interface {
	RunDailyAmortization(ctx context.Context, loanID string, businessDate time.Time) (*domain.AmortizationResponse, error)
}

// Result summarizes one run.
type Result struct {
	BusinessDate time.Time
	Processed    int
	Amortized    int
	Failed       map[string]error
}

// Runner fans the loans of a close-of-business run out to a bounded pool.
// Each loan is handled by exactly one worker; loans share no state.
type Runner struct {
	loans     LoanLister
	amortizer Amortizer
	workers   int
	metrics   *Metrics
	logger    *zap.Logger
}

func NewRunner(loans LoanLister, amortizer Amortizer, workers int, metrics *Metrics, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{loans: loans, amortizer: amortizer, workers: workers, metrics: metrics, logger: logger}
}

// Run processes every active loan for businessDate. A failing loan is
// recorded and does not stop the others; a cancelled context stops loans
// that have not started yet.
func (r *Runner) Run(ctx context.Context, businessDate time.Time) (*Result, error) {
	businessDate = utils.DateOnly(businessDate)
	start := time.Now()

	ids, err := r.loans.ListActiveLoanIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{BusinessDate: businessDate, Failed: make(map[string]error)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			// a pass is never interrupted once started
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := r.amortizer.RunDailyAmortization(gctx, id, businessDate)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch {
			case err != nil:
				result.Failed[id] = err
				r.metrics.observeLoan("failed")
				r.logger.Error("close of business failed for loan",
					zap.String("op", "cob.Run"),
					zap.String("loan_id", id),
					zap.String("business_date", utils.FormatDate(businessDate)),
					zap.Error(err),
				)
			case resp != nil && resp.TransactionID != nil:
				result.Amortized++
				r.metrics.observeLoan("amortized")
				r.metrics.addAmount(resp.Amount.InexactFloat64())
			default:
				r.metrics.observeLoan("skipped")
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	r.metrics.observeRun(time.Since(start))

	r.logger.Info("close of business finished",
		zap.String("op", "cob.Run"),
		zap.String("business_date", utils.FormatDate(businessDate)),
		zap.Int("loans", len(ids)),
		zap.Int("processed", result.Processed),
		zap.Int("amortized", result.Amortized),
		zap.Int("failed", len(result.Failed)),
	)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return result, err
	}
	return result, nil
}

// Metrics are the prometheus collectors of the runner. A nil *Metrics
// records nothing.
type Metrics struct {
	loans    *prometheus.CounterVec
	amount   prometheus.Counter
	duration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loan_engine",
			Subsystem: "cob",
			Name:      "loans_total",
			Help:      "Loans processed by close of business, by outcome.",
		}, []string{"outcome"}),
		amount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loan_engine",
			Subsystem: "cob",
			Name:      "capitalized_income_amortized_total",
			Help:      "Capitalized income recognized by close of business.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loan_engine",
			Subsystem: "cob",
			Name:      "run_duration_seconds",
			Help:      "Duration of close of business runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.loans, m.amount, m.duration)
	}
	return m
}

func (m *Metrics) observeLoan(outcome string) {
	if m != nil {
		m.loans.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) addAmount(amount float64) {
	if m != nil && amount > 0 {
		m.amount.Add(amount)
	}
}

func (m *Metrics) observeRun(d time.Duration) {
	if m != nil {
		m.duration.Observe(d.Seconds())
	}
}
