// Package analyzer builds the pipeline's model-backed components. Each
// component is bound to one operation and carries the resolved model
// configuration for it.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pario-ai/pariopipe/pkg/models"
)

// ErrUnknownComponent is returned by Build for an unregistered kind.
var ErrUnknownComponent = errors.New("unknown component")

// Kind names a component type.
type Kind string

const (
	PoliticalAnalyzer          Kind = "political_analyzer"
	SentimentAnalyzer          Kind = "sentiment_analyzer"
	SmartPipelineReviewer      Kind = "smart_pipeline_reviewer"
	TopicInterpreter           Kind = "topic_interpreter"
	PipelineValidator          Kind = "pipeline_validator"
	QualitativeClassifier      Kind = "qualitative_classifier"
	IntelligentNetworkAnalyzer Kind = "intelligent_network_analyzer"
)

// ConfigResolver resolves an operation to its model configuration.
type ConfigResolver interface {
	LoadOperationConfig(op string) (models.ResolvedConfig, error)
}

// DefaultsSource supplies the configuration used when no operation is set.
type DefaultsSource interface {
	DefaultStageConfig() *models.StageConfig
}

// UsageMonitor records usage and reports the downgrade decision.
type UsageMonitor interface {
	RecordUsage(ctx context.Context, model string, inputTokens, outputTokens int, stage, operation string) (float64, error)
	ShouldAutoDowngrade() bool
}

// Deps are the collaborators a component is built from. Monitor may be nil.
type Deps struct {
	Resolver ConfigResolver
	Defaults DefaultsSource
	Monitor  UsageMonitor
	// ProjectRoot is required by the pipeline validator.
	ProjectRoot string
	Logger      *slog.Logger
}

type factory func(Deps) (*Component, error)

// kindOperations binds each kind to the operation it runs.
var kindOperations = map[Kind]models.Operation{
	PoliticalAnalyzer:          models.OpPoliticalAnalysis,
	SentimentAnalyzer:          models.OpSentimentAnalysis,
	SmartPipelineReviewer:      models.OpPipelineReview,
	TopicInterpreter:           models.OpTopicInterpretation,
	PipelineValidator:          models.OpValidation,
	QualitativeClassifier:      models.OpQualitativeAnalysis,
	IntelligentNetworkAnalyzer: models.OpNetworkAnalysis,
}

var factories = map[Kind]factory{
	PoliticalAnalyzer:          bind(PoliticalAnalyzer),
	SentimentAnalyzer:          bind(SentimentAnalyzer),
	SmartPipelineReviewer:      bind(SmartPipelineReviewer),
	TopicInterpreter:           bind(TopicInterpreter),
	PipelineValidator:          newPipelineValidator,
	QualitativeClassifier:      bind(QualitativeClassifier),
	IntelligentNetworkAnalyzer: bind(IntelligentNetworkAnalyzer),
}

func bind(kind Kind) factory {
	return func(d Deps) (*Component, error) {
		c, err := NewBase(d, kindOperations[kind])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		c.kind = kind
		return c, nil
	}
}

func newPipelineValidator(d Deps) (*Component, error) {
	if d.ProjectRoot == "" {
		return nil, fmt.Errorf("%s: project root is required", PipelineValidator)
	}
	c, err := bind(PipelineValidator)(d)
	if err != nil {
		return nil, err
	}
	c.root = d.ProjectRoot
	return c, nil
}

// Build constructs the component of the given kind.
func Build(kind Kind, d Deps) (*Component, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, kind)
	}
	return f(d)
}

// Kinds returns every registered kind, sorted.
func Kinds() []Kind {
	out := make([]Kind, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// OperationOf returns the operation a kind is bound to.
func OperationOf(kind Kind) (models.Operation, bool) {
	op, ok := kindOperations[kind]
	return op, ok
}
