package models

import "time"

// DowngradeMetric selects what the downgrade threshold is compared against.
type DowngradeMetric string

const (
	// MetricDailyTotal compares the cost recorded on the current local day.
	MetricDailyTotal DowngradeMetric = "daily_total"
	// MetricRollingWindow compares the cost recorded within a trailing window.
	MetricRollingWindow DowngradeMetric = "rolling_window"
)

// BudgetStatus shows current spend against the downgrade threshold.
type BudgetStatus struct {
	Metric     DowngradeMetric `json:"metric"`
	Window     time.Duration   `json:"window,omitempty"`
	Threshold  float64         `json:"threshold"`
	Used       float64         `json:"used"`
	Remaining  float64         `json:"remaining"`
	Percentage float64         `json:"percentage"`
	Downgrade  bool            `json:"downgrade"`
}
