package models

// PricingEntry holds per-token USD rates for a model.
type PricingEntry struct {
	Model      string  `json:"model" yaml:"model"`
	InputRate  float64 `json:"input_rate" yaml:"input_rate"`
	OutputRate float64 `json:"output_rate" yaml:"output_rate"`
}

// Cost returns the USD cost of a call with the given token counts.
func (p PricingEntry) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.InputRate + float64(outputTokens)*p.OutputRate
}
