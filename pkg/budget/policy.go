package budget

import (
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/pariopipe/pkg/config"
	"github.com/pario-ai/pariopipe/pkg/models"
)

// ErrBudgetExceeded is returned by Check when spend has reached the
// downgrade threshold.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Policy decides when the pipeline should switch to cheaper models.
// A Threshold of zero disables downgrading.
type Policy struct {
	Metric    models.DowngradeMetric
	Threshold float64
	// Window is the trailing period summed by MetricRollingWindow.
	Window time.Duration
}

// FromConfig builds a Policy from the monitor section.
func FromConfig(m config.MonitorConfig) Policy {
	return Policy{
		Metric:    models.DowngradeMetric(m.DowngradeMetric),
		Threshold: m.DowngradeThreshold,
		Window:    m.Window,
	}
}

// Validate checks the policy fields.
func (p Policy) Validate() error {
	switch p.Metric {
	case models.MetricDailyTotal:
	case models.MetricRollingWindow:
		if p.Window <= 0 {
			return fmt.Errorf("rolling_window metric needs a positive window, got %s", p.Window)
		}
	default:
		return fmt.Errorf("unknown downgrade metric %q", p.Metric)
	}
	if p.Threshold < 0 {
		return fmt.Errorf("negative downgrade threshold %v", p.Threshold)
	}
	return nil
}

// Evaluate sums the cost of the records the metric covers at now and
// compares it with the threshold. Both sides are compared in whole
// nano-USD.
func (p Policy) Evaluate(records []models.UsageRecord, now time.Time) models.BudgetStatus {
	start, end := p.period(now)

	var used int64
	for _, r := range records {
		if inPeriod(r.Timestamp, start, end) {
			used += models.ToNanos(r.Cost)
		}
	}

	st := models.BudgetStatus{
		Metric:    p.Metric,
		Threshold: p.Threshold,
		Used:      models.FromNanos(used),
	}
	if p.Metric == models.MetricRollingWindow {
		st.Window = p.Window
	}
	if p.Threshold > 0 {
		limit := models.ToNanos(p.Threshold)
		st.Remaining = models.FromNanos(max(limit-used, 0))
		st.Percentage = float64(used) / float64(max(limit, 1)) * 100
		st.Downgrade = used >= limit
	}
	return st
}

// Check returns ErrBudgetExceeded when Evaluate reports a downgrade.
func (p Policy) Check(records []models.UsageRecord, now time.Time) error {
	if st := p.Evaluate(records, now); st.Downgrade {
		return fmt.Errorf("%w: %.4f of %.4f USD", ErrBudgetExceeded, st.Used, st.Threshold)
	}
	return nil
}

// period returns the [start, end) range the metric covers.
func (p Policy) period(now time.Time) (time.Time, time.Time) {
	if p.Metric == models.MetricRollingWindow {
		// (now-window, now]
		return now.Add(-p.Window).Add(time.Nanosecond), now.Add(time.Nanosecond)
	}
	return DayBounds(now)
}

// DayBounds returns the local calendar day containing now as [start, end).
func DayBounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

// InDay reports whether t falls on the same local calendar day as now.
func InDay(t, now time.Time) bool {
	start, end := DayBounds(now)
	return inPeriod(t, start, end)
}

func inPeriod(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
