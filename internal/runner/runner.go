package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/edvin/subsync/internal/config"
	"github.com/edvin/subsync/internal/derive"
	"github.com/edvin/subsync/internal/fetch"
	"github.com/edvin/subsync/internal/normalize"
	"github.com/edvin/subsync/internal/payments"
	"github.com/edvin/subsync/internal/reconcile"
)

// ErrRunInProgress is returned when a run is requested while another one
// holds the sheet. Runs assume exclusive write access to the target range,
// so they never overlap.
var ErrRunInProgress = errors.New("runner: a run is already in progress")

// BookingSource supplies plan metadata and customer subscriptions. It is
// the mandatory source; its failure aborts.
type BookingSource interface {
	Plans(ctx context.Context) ([]map[string]any, *fetch.Report, error)
	CustomerSubscriptions(ctx context.Context) ([]map[string]any, *fetch.Report, error)
}

// InvoiceSource supplies the invoice table. Optional: failure degrades the
// derived columns instead of aborting.
type InvoiceSource interface {
	Invoices(ctx context.Context) ([]payments.Invoice, *fetch.Report, error)
}

// ContractSource supplies manual-contract tax identifiers. Optional like
// InvoiceSource.
type ContractSource interface {
	Login(ctx context.Context) error
	ManualContractTaxIDs(ctx context.Context) ([]string, error)
}

// SheetWriter performs the range-scoped write-back.
type SheetWriter interface {
	Clear(ctx context.Context, fieldCount int) error
	WriteRows(ctx context.Context, rows [][]any) error
	WriteStamp(ctx context.Context, day time.Time) error
}

// SnapshotStore archives a run report. Optional and best effort.
type SnapshotStore interface {
	StoreSnapshot(ctx context.Context, runID string, at time.Time, snapshot any) (string, error)
}

// fieldCount is the width of the managed sheet window: fifteen reconciled
// columns plus four derived ones.
const fieldCount = 19

// Report summarizes one run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Plans                 int `json:"plans"`
	CustomerSubscriptions int `json:"customer_subscriptions"`
	Invoices              int `json:"invoices"`
	ManualContracts       int `json:"manual_contracts"`
	Facts                 int `json:"facts"`
	RowsWritten           int `json:"rows_written"`

	// Truncated lists sources whose fetch lost pages mid-run.
	Truncated []string `json:"truncated,omitempty"`
	// Degraded lists optional sources that failed entirely.
	Degraded []string `json:"degraded,omitempty"`
}

// Runner executes the full pipeline: fetch, normalize, join, derive, write.
// Stages run sequentially; at most one run is active at a time.
type Runner struct {
	logger    zerolog.Logger
	booking   BookingSource
	invoices  InvoiceSource
	contracts ContractSource
	sheet     SheetWriter
	snapshots SnapshotStore
	joiner    *reconcile.Joiner
	engine    *derive.Engine
	labels    config.LabelSettings
	now       func() time.Time

	mu sync.Mutex

	runDuration prometheus.Histogram
	runsTotal   *prometheus.CounterVec
	records     *prometheus.GaugeVec
	truncated   *prometheus.CounterVec
	rowsWritten prometheus.Gauge

	lastReport   *Report
	lastReportMu sync.RWMutex
}

// Options carries the Runner's collaborators. Invoices, Contracts and
// Snapshots may be nil; the pipeline degrades accordingly.
type Options struct {
	Booking   BookingSource
	Invoices  InvoiceSource
	Contracts ContractSource
	Sheet     SheetWriter
	Snapshots SnapshotStore
	Joiner    *reconcile.Joiner
	Engine    *derive.Engine
	Labels    config.LabelSettings
}

func New(logger zerolog.Logger, reg prometheus.Registerer, opts Options) *Runner {
	r := &Runner{
		logger:    logger.With().Str("component", "runner").Logger(),
		booking:   opts.Booking,
		invoices:  opts.Invoices,
		contracts: opts.Contracts,
		sheet:     opts.Sheet,
		snapshots: opts.Snapshots,
		joiner:    opts.Joiner,
		engine:    opts.Engine,
		labels:    opts.Labels,
		now:       time.Now,
	}

	factory := promauto.With(reg)
	r.runDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "subsync_run_duration_seconds",
		Help:    "Duration of each synchronization run",
		Buckets: prometheus.DefBuckets,
	})
	r.runsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "subsync_runs_total",
		Help: "Total synchronization runs",
	}, []string{"result"})
	r.records = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subsync_source_records",
		Help: "Records fetched per source in the last run",
	}, []string{"source"})
	r.truncated = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "subsync_source_truncated_total",
		Help: "Fetches that lost pages mid-run",
	}, []string{"source"})
	r.rowsWritten = factory.NewGauge(prometheus.GaugeOpts{
		Name: "subsync_rows_written",
		Help: "Rows written to the sheet in the last run",
	})
	return r
}

// Running reports whether a run currently holds the sheet. Advisory only:
// the answer can be stale by the time the caller acts on it, Run itself is
// the authority.
func (r *Runner) Running() bool {
	if r.mu.TryLock() {
		r.mu.Unlock()
		return false
	}
	return true
}

// LastReport returns the most recent run's report, or nil before the first
// run completes.
func (r *Runner) LastReport() *Report {
	r.lastReportMu.RLock()
	defer r.lastReportMu.RUnlock()
	return r.lastReport
}

// Run executes one synchronization run. Concurrent calls beyond the first
// return ErrRunInProgress.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	start := r.now()
	report := &Report{RunID: uuid.NewString(), StartedAt: start}
	logger := r.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Msg("starting synchronization run")

	err := r.execute(ctx, logger, report)

	report.FinishedAt = r.now()
	r.runDuration.Observe(report.FinishedAt.Sub(start).Seconds())
	if err != nil {
		r.runsTotal.WithLabelValues("failure").Inc()
		logger.Error().Err(err).Msg("synchronization run failed")
	} else {
		r.runsTotal.WithLabelValues("success").Inc()
		logger.Info().Int("rows", report.RowsWritten).
			Strs("degraded", report.Degraded).Msg("synchronization run complete")
	}

	r.lastReportMu.Lock()
	r.lastReport = report
	r.lastReportMu.Unlock()

	r.archive(ctx, logger, report)
	return report, err
}

func (r *Runner) execute(ctx context.Context, logger zerolog.Logger, report *Report) error {
	plans, plansReport, err := r.booking.Plans(ctx)
	if err != nil {
		return fmt.Errorf("plans: %w", err)
	}
	r.recordFetch(report, "plans", plansReport)
	report.Plans = len(plans)

	subs, subsReport, err := r.booking.CustomerSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("customer subscriptions: %w", err)
	}
	r.recordFetch(report, "customer_subscriptions", subsReport)
	report.CustomerSubscriptions = len(subs)

	// An empty mandatory source aborts before any sheet operation. A
	// clear followed by a zero-row write would erase every synced row.
	if len(plans) == 0 {
		return errors.New("plans source returned no records, refusing to overwrite sheet")
	}
	if len(subs) == 0 {
		return errors.New("customer subscriptions source returned no records, refusing to overwrite sheet")
	}

	var invoices []payments.Invoice
	if r.invoices != nil {
		fetched, invReport, err := r.invoices.Invoices(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("invoice source failed, derived columns degrade")
			report.Degraded = append(report.Degraded, "payments")
		} else {
			invoices = fetched
			r.recordFetch(report, "invoices", invReport)
		}
	}
	report.Invoices = len(invoices)

	var taxIDs []string
	if r.contracts != nil {
		ids, err := r.fetchContracts(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("crm source failed, manual contracts skipped")
			report.Degraded = append(report.Degraded, "crm")
		} else {
			taxIDs = ids
			r.records.WithLabelValues("manual_contracts").Set(float64(len(ids)))
		}
	}
	report.ManualContracts = len(taxIDs)

	facts := r.joiner.Join(normalize.FlattenAll(subs), normalize.FlattenAll(plans))
	facts = reconcile.AppendManualContracts(facts, taxIDs, r.labels.ManualContractPlan)
	report.Facts = len(facts)

	sets := r.engine.Derive(facts, invoices)
	rows := buildRows(facts, sets)

	// A failed clear does not block the write attempt, but the run only
	// succeeds when every sheet operation did.
	var sheetErrs []error
	if err := r.sheet.Clear(ctx, fieldCount); err != nil {
		logger.Error().Err(err).Msg("sheet clear failed")
		sheetErrs = append(sheetErrs, err)
	}
	if err := r.sheet.WriteRows(ctx, rows); err != nil {
		sheetErrs = append(sheetErrs, err)
	} else {
		report.RowsWritten = len(rows)
		r.rowsWritten.Set(float64(len(rows)))
	}
	if err := r.sheet.WriteStamp(ctx, r.now()); err != nil {
		logger.Error().Err(err).Msg("stamp cell update failed")
		sheetErrs = append(sheetErrs, err)
	}
	return errors.Join(sheetErrs...)
}

func (r *Runner) fetchContracts(ctx context.Context) ([]string, error) {
	if err := r.contracts.Login(ctx); err != nil {
		return nil, err
	}
	return r.contracts.ManualContractTaxIDs(ctx)
}

func (r *Runner) recordFetch(report *Report, source string, fr *fetch.Report) {
	if fr == nil {
		return
	}
	r.records.WithLabelValues(source).Set(float64(fr.Fetched))
	if fr.Truncated {
		r.truncated.WithLabelValues(source).Inc()
		report.Truncated = append(report.Truncated, source)
	}
}

func (r *Runner) archive(ctx context.Context, logger zerolog.Logger, report *Report) {
	if r.snapshots == nil {
		return
	}
	key, err := r.snapshots.StoreSnapshot(ctx, report.RunID, report.StartedAt, report)
	if err != nil {
		logger.Warn().Err(err).Msg("run snapshot upload failed")
		return
	}
	logger.Debug().Str("key", key).Msg("run snapshot archived")
}

// buildRows lays out one sheet row per fact, reconciled columns first, then
// the derived ones. The order matches the managed window's header row.
func buildRows(facts []reconcile.SubscriptionFact, sets []derive.StatusSet) [][]any {
	rows := make([][]any, len(facts))
	for i := range facts {
		f := &facts[i]
		rows[i] = []any{
			f.CustomerSubscriptionID,
			f.PlanID,
			f.StatusLabel,
			f.PurchaseDate,
			f.PlanName,
			f.ExpirationDate,
			f.CancellationDate,
			f.CustomerID,
			f.CustomerName,
			f.Email,
			f.IntervalLabel,
			f.PaymentSubscriptionID,
			f.TaxID.Value(),
			f.CompanyName,
			f.Phone,
			sets[i].ChosenMonthStatus,
			sets[i].TwoMonthStatus,
			sets[i].LastPaidMonth,
			sets[i].Lifecycle,
		}
	}
	return rows
}
