package models

import "sort"

// Operation names a task the pipeline dispatches to a model.
type Operation string

const (
	OpPoliticalAnalysis   Operation = "political_analysis"
	OpSentimentAnalysis   Operation = "sentiment_analysis"
	OpNetworkAnalysis     Operation = "network_analysis"
	OpQualitativeAnalysis Operation = "qualitative_analysis"
	OpPipelineReview      Operation = "pipeline_review"
	OpTopicInterpretation Operation = "topic_interpretation"
	OpValidation          Operation = "validation"
)

// operationStages is the fixed operation to stage mapping. Every known
// operation maps to exactly one stage.
var operationStages = map[Operation]string{
	OpPoliticalAnalysis:   "political",
	OpSentimentAnalysis:   "sentiment",
	OpNetworkAnalysis:     "network",
	OpQualitativeAnalysis: "qualitative",
	OpPipelineReview:      "review",
	OpTopicInterpretation: "topics",
	OpValidation:          "validation",
}

// StageFor returns the stage an operation belongs to.
func StageFor(op string) (string, bool) {
	stage, ok := operationStages[Operation(op)]
	return stage, ok
}

// IsOperation reports whether op is in the fixed operation set.
func IsOperation(op string) bool {
	_, ok := operationStages[Operation(op)]
	return ok
}

// Operations returns the known operations sorted by name.
func Operations() []Operation {
	ops := make([]Operation, 0, len(operationStages))
	for op := range operationStages {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Stages returns the stages referenced by the operation mapping, sorted.
func Stages() []string {
	seen := make(map[string]bool, len(operationStages))
	stages := make([]string, 0, len(operationStages))
	for _, s := range operationStages {
		if !seen[s] {
			seen[s] = true
			stages = append(stages, s)
		}
	}
	sort.Strings(stages)
	return stages
}
