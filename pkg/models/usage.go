package models

import (
	"math"
	"time"
)

// NanosPerUSD is the resolution costs are recorded and summed at. Totals
// are kept in whole nano-USD so that sums do not depend on record order
// or count.
const NanosPerUSD = 1e9

// ToNanos rounds a USD amount to whole nano-USD.
func ToNanos(usd float64) int64 {
	return int64(math.Round(usd * NanosPerUSD))
}

// FromNanos converts nano-USD to USD.
func FromNanos(n int64) float64 {
	return float64(n) / NanosPerUSD
}

// AddCost returns usd + cost summed in nano-USD.
func AddCost(usd, cost float64) float64 {
	return FromNanos(ToNanos(usd) + ToNanos(cost))
}

// UsageRecord is one model invocation with its token counts and cost.
// Records are immutable once created.
type UsageRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Stage        string    `json:"stage"`
	Operation    string    `json:"operation"`
	Cost         float64   `json:"cost"`
	// Priced is false when the model had no pricing entry and Cost is 0.
	Priced bool `json:"priced"`
}

// Breakdown aggregates usage records sharing a key.
type Breakdown struct {
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add folds a record into the breakdown.
func (b *Breakdown) Add(rec UsageRecord) {
	b.Calls++
	b.InputTokens += int64(rec.InputTokens)
	b.OutputTokens += int64(rec.OutputTokens)
	b.Cost = AddCost(b.Cost, rec.Cost)
}

// DailyReport aggregates the usage records of one local calendar day.
type DailyReport struct {
	Date         string               `json:"date"`
	TotalCost    float64              `json:"total_cost"`
	Calls        int                  `json:"calls"`
	InputTokens  int64                `json:"input_tokens"`
	OutputTokens int64                `json:"output_tokens"`
	ByStage      map[string]Breakdown `json:"by_stage"`
	ByOperation  map[string]Breakdown `json:"by_operation"`
	ByModel      map[string]Breakdown `json:"by_model"`
	// Unpriced lists models recorded today that had no pricing entry.
	Unpriced []string `json:"unpriced,omitempty"`
}

// UsageSummary aggregates stored usage per stage and model.
type UsageSummary struct {
	Stage        string  `json:"stage"`
	Model        string  `json:"model"`
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}
