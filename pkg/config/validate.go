package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pario-ai/pariopipe/pkg/models"
)

// FieldError is a validation failure for one config field.
type FieldError struct {
	// Field is the dotted path to the field, e.g. "monitor.window".
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a config.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid config: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid config (%d errors):", len(e.Errors))
	for _, fe := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

// Validate checks cfg and returns a ValidationError listing all problems,
// or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateLayer("defaults", cfg.Defaults)...)
	for _, name := range sortedKeys(cfg.Stages) {
		errs = append(errs, validateLayer("stages."+name, cfg.Stages[name])...)
	}
	for _, name := range sortedKeys(cfg.Operations) {
		if !models.IsOperation(name) {
			errs = append(errs, FieldError{Field: "operations." + name, Message: "unknown operation"})
			continue
		}
		errs = append(errs, validateLayer("operations."+name, cfg.Operations[name])...)
	}
	for _, model := range sortedKeys(cfg.Pricing) {
		p := cfg.Pricing[model]
		if p.InputRate < 0 {
			errs = append(errs, FieldError{Field: "pricing." + model + ".input_rate", Message: "must not be negative"})
		}
		if p.OutputRate < 0 {
			errs = append(errs, FieldError{Field: "pricing." + model + ".output_rate", Message: "must not be negative"})
		}
	}
	errs = append(errs, validateMonitor(&cfg.Monitor)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		errs = append(errs, FieldError{Field: "metrics.listen", Message: "required when metrics are enabled"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateLayer(field string, o models.Override) []FieldError {
	var errs []FieldError
	if o.Temperature != nil && (*o.Temperature < 0 || *o.Temperature > 1) {
		errs = append(errs, FieldError{Field: field + ".temperature", Message: "must be between 0 and 1"})
	}
	if o.TopP != nil && (*o.TopP < 0 || *o.TopP > 1) {
		errs = append(errs, FieldError{Field: field + ".top_p", Message: "must be between 0 and 1"})
	}
	if o.MaxTokens != nil && *o.MaxTokens <= 0 {
		errs = append(errs, FieldError{Field: field + ".max_tokens", Message: "must be positive"})
	}
	if o.BatchSize != nil && *o.BatchSize <= 0 {
		errs = append(errs, FieldError{Field: field + ".batch_size", Message: "must be positive"})
	}
	return errs
}

func validateMonitor(m *MonitorConfig) []FieldError {
	var errs []FieldError
	switch models.DowngradeMetric(m.DowngradeMetric) {
	case models.MetricDailyTotal:
	case models.MetricRollingWindow:
		if m.Window <= 0 {
			errs = append(errs, FieldError{Field: "monitor.window", Message: "must be positive for rolling_window"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "monitor.downgrade_metric",
			Message: fmt.Sprintf("unknown metric %q (want daily_total or rolling_window)", m.DowngradeMetric),
		})
	}
	if m.DowngradeThreshold < 0 {
		errs = append(errs, FieldError{Field: "monitor.downgrade_threshold", Message: "must not be negative"})
	}
	if m.Persist && m.DBFile == "" {
		errs = append(errs, FieldError{Field: "monitor.db_file", Message: "required when persist is enabled"})
	}
	if m.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "monitor.retention_days", Message: "must not be negative"})
	}
	return errs
}

func validateLogging(l *LoggingConfig) []FieldError {
	var errs []FieldError
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", l.Level)})
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, FieldError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", l.Format)})
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
