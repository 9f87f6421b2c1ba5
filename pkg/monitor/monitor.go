// Package monitor records model usage, prices it and decides when the
// pipeline should downgrade to cheaper models.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/pariopipe/pkg/budget"
	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/pario-ai/pariopipe/pkg/pricing"
	"github.com/pario-ai/pariopipe/pkg/tracker"
)

// ErrInvalidUsage is returned by RecordUsage for negative token counts.
var ErrInvalidUsage = errors.New("invalid usage")

// Observer is notified of every recorded usage and of downgrade changes.
// Calls happen outside the monitor's lock.
type Observer interface {
	ObserveUsage(rec models.UsageRecord)
	ObserveDowngrade(active bool)
}

// Options configures a Monitor.
type Options struct {
	Pricing *pricing.Table
	Policy  budget.Policy
	// Tracker persists records; nil keeps them in memory only.
	Tracker  tracker.Tracker
	Observer Observer
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// RetentionDays is how many local days of records Rollover keeps in
	// the store, counting today. Zero never prunes the store.
	RetentionDays int
}

// Monitor holds the usage log of the current day. It is safe for
// concurrent use.
type Monitor struct {
	pricing   *pricing.Table
	policy    budget.Policy
	store     tracker.Tracker
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	retention int

	mu      sync.RWMutex
	records []models.UsageRecord

	downgrade atomic.Bool
	closeOnce sync.Once
}

// New creates a Monitor. It fails only on an invalid policy.
func New(opts Options) (*Monitor, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("downgrade policy: %w", err)
	}
	m := &Monitor{
		pricing:   opts.Pricing,
		policy:    opts.Policy,
		store:     opts.Tracker,
		observer:  opts.Observer,
		logger:    opts.Logger,
		now:       opts.Now,
		retention: opts.RetentionDays,
	}
	if m.pricing == nil {
		m.pricing, _ = pricing.New(nil)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "monitor")
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Load reads today's records from the store into memory. Records already
// in memory are kept; duplicates by ID are skipped.
func (m *Monitor) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	now := m.now()
	start, _ := budget.DayBounds(now)
	stored, err := m.store.Since(ctx, start)
	if err != nil {
		return fmt.Errorf("load usage log: %w", err)
	}

	m.mu.Lock()
	seen := make(map[string]bool, len(m.records))
	for _, r := range m.records {
		seen[r.ID] = true
	}
	loaded := make([]models.UsageRecord, 0, len(stored)+len(m.records))
	for _, r := range stored {
		if !seen[r.ID] && budget.InDay(r.Timestamp, now) {
			loaded = append(loaded, r)
		}
	}
	n := len(loaded)
	m.records = append(loaded, m.records...)
	m.mu.Unlock()

	m.logger.Debug("usage log loaded", "records", n)
	m.noteDowngrade(m.ShouldAutoDowngrade())
	return nil
}

// RecordUsage prices one model call, appends it to the log and returns its
// cost rounded to whole nano-USD. A model without pricing is recorded at zero cost with a warning so
// a stage that already made its call is never blocked.
func (m *Monitor) RecordUsage(ctx context.Context, model string, inputTokens, outputTokens int, stage, operation string) (float64, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return 0, fmt.Errorf("%w: negative token count (input=%d, output=%d)", ErrInvalidUsage, inputTokens, outputTokens)
	}

	priced := true
	cost, err := m.pricing.Cost(model, inputTokens, outputTokens)
	cost = models.FromNanos(models.ToNanos(cost))
	if err != nil {
		priced = false
		cost = 0
		m.logger.Warn("recording usage at zero cost",
			"model", model, "stage", stage, "operation", operation, "error", err)
	}

	rec := models.UsageRecord{
		ID:           uuid.NewString(),
		Timestamp:    m.now(),
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Stage:        stage,
		Operation:    operation,
		Cost:         cost,
		Priced:       priced,
	}

	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Record(ctx, rec); err != nil {
			m.logger.Warn("usage record not persisted", "id", rec.ID, "error", err)
		}
	}
	if m.observer != nil {
		m.observer.ObserveUsage(rec)
	}
	m.noteDowngrade(m.ShouldAutoDowngrade())

	return cost, nil
}

func (m *Monitor) snapshot() []models.UsageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.UsageRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Records returns a copy of the in-memory log in append order.
func (m *Monitor) Records() []models.UsageRecord {
	return m.snapshot()
}

// GetDailyReport aggregates today's records.
func (m *Monitor) GetDailyReport() models.DailyReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ReportFrom(m.records, m.now())
}

// BudgetStatus evaluates the downgrade policy against the log.
func (m *Monitor) BudgetStatus() models.BudgetStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy.Evaluate(m.records, m.now())
}

// ShouldAutoDowngrade reports whether spend has reached the threshold.
// It is recomputed from the log on every call.
func (m *Monitor) ShouldAutoDowngrade() bool {
	return m.BudgetStatus().Downgrade
}

// Policy returns the downgrade policy.
func (m *Monitor) Policy() budget.Policy { return m.policy }

// Observer returns the observer the monitor was built with, or nil.
func (m *Monitor) Observer() Observer { return m.observer }

// Store returns the usage store, or nil when records are kept in memory.
func (m *Monitor) Store() tracker.Tracker { return m.store }

// noteDowngrade logs and publishes changes of the downgrade decision.
func (m *Monitor) noteDowngrade(active bool) {
	if !m.downgrade.CompareAndSwap(!active, active) {
		return
	}
	if active {
		st := m.BudgetStatus()
		m.logger.Warn("cost threshold reached, downgrading models",
			"metric", st.Metric, "used", st.Used, "threshold", st.Threshold)
	} else {
		m.logger.Info("cost below threshold, downgrade lifted")
	}
	if m.observer != nil {
		m.observer.ObserveDowngrade(active)
	}
}

// Rollover drops in-memory records from previous days and prunes the store
// beyond the retention period. It returns the number of records dropped
// from memory and from the store.
func (m *Monitor) Rollover(ctx context.Context) (int, int64, error) {
	now := m.now()

	m.mu.Lock()
	kept := m.records[:0:0]
	for _, r := range m.records {
		if budget.InDay(r.Timestamp, now) {
			kept = append(kept, r)
		}
	}
	dropped := len(m.records) - len(kept)
	m.records = kept
	m.mu.Unlock()

	var pruned int64
	var err error
	if m.store != nil && m.retention > 0 {
		start, _ := budget.DayBounds(now)
		cutoff := start.AddDate(0, 0, -(m.retention - 1))
		pruned, err = m.store.Prune(ctx, cutoff)
		if err != nil {
			err = fmt.Errorf("rollover: %w", err)
		}
	}

	m.noteDowngrade(m.ShouldAutoDowngrade())
	m.logger.Info("usage log rolled over", "dropped", dropped, "pruned", pruned)
	return dropped, pruned, err
}

// Reset clears the in-memory log. The store is left untouched.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
	m.noteDowngrade(false)
}

// Close releases the store.
func (m *Monitor) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.store != nil {
			err = m.store.Close()
		}
	})
	return err
}

// ReportFrom aggregates the records that fall on the local day of now.
// Costs are summed in nano-USD, so TotalCost equals the policy's Used for
// the daily total metric.
func ReportFrom(records []models.UsageRecord, now time.Time) models.DailyReport {
	rep := models.DailyReport{
		Date:        now.Format("2006-01-02"),
		ByStage:     make(map[string]models.Breakdown),
		ByOperation: make(map[string]models.Breakdown),
		ByModel:     make(map[string]models.Breakdown),
	}
	unpriced := make(map[string]bool)

	var total int64
	for _, r := range records {
		if !budget.InDay(r.Timestamp, now) {
			continue
		}
		total += models.ToNanos(r.Cost)
		rep.Calls++
		rep.InputTokens += int64(r.InputTokens)
		rep.OutputTokens += int64(r.OutputTokens)

		addTo(rep.ByStage, r.Stage, r)
		addTo(rep.ByOperation, r.Operation, r)
		addTo(rep.ByModel, r.Model, r)
		if !r.Priced {
			unpriced[r.Model] = true
		}
	}

	rep.TotalCost = models.FromNanos(total)

	for model := range unpriced {
		rep.Unpriced = append(rep.Unpriced, model)
	}
	sort.Strings(rep.Unpriced)
	return rep
}

func addTo(m map[string]models.Breakdown, key string, r models.UsageRecord) {
	b := m[key]
	b.Add(r)
	m[key] = b
}
