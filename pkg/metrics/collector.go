// Package metrics exports cost monitor activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pario-ai/pariopipe/pkg/models"
)

// Collector records usage into Prometheus metrics. It satisfies the cost
// monitor's Observer interface.
//
// Metrics:
//   - <ns>_cost_usd_total{stage,operation,model}
//   - <ns>_tokens_total{model,direction}
//   - <ns>_usage_records_total{stage,operation}
//   - <ns>_unpriced_usage_total{model}
//   - <ns>_downgrade_active
type Collector struct {
	registry *prometheus.Registry

	cost      *prometheus.CounterVec
	tokens    *prometheus.CounterVec
	records   *prometheus.CounterVec
	unpriced  *prometheus.CounterVec
	downgrade prometheus.Gauge
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// gets a fresh registry.
func NewCollector(namespace string, reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: reg,
		cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_usd_total",
			Help:      "Model cost in USD by stage, operation and model",
		}, []string{"stage", "operation", "model"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens by model and direction (input or output)",
		}, []string{"model", "direction"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_records_total",
			Help:      "Recorded model calls by stage and operation",
		}, []string{"stage", "operation"}),
		unpriced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unpriced_usage_total",
			Help:      "Model calls recorded at zero cost for lack of pricing",
		}, []string{"model"}),
		downgrade: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downgrade_active",
			Help:      "1 while the cost threshold is reached and models are downgraded",
		}),
	}

	reg.MustRegister(c.cost, c.tokens, c.records, c.unpriced, c.downgrade)
	return c
}

// ObserveUsage records one usage record.
func (c *Collector) ObserveUsage(rec models.UsageRecord) {
	c.cost.WithLabelValues(rec.Stage, rec.Operation, rec.Model).Add(rec.Cost)
	c.tokens.WithLabelValues(rec.Model, "input").Add(float64(rec.InputTokens))
	c.tokens.WithLabelValues(rec.Model, "output").Add(float64(rec.OutputTokens))
	c.records.WithLabelValues(rec.Stage, rec.Operation).Inc()
	if !rec.Priced {
		c.unpriced.WithLabelValues(rec.Model).Inc()
	}
}

// ObserveDowngrade sets the downgrade gauge.
func (c *Collector) ObserveDowngrade(active bool) {
	if active {
		c.downgrade.Set(1)
	} else {
		c.downgrade.Set(0)
	}
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
