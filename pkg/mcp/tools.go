package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/pario-ai/pariopipe/pkg/models"
)

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

type tool struct {
	name        string
	description string
	args        any
	handler     toolHandler
}

type resolveArgs struct {
	Operation string `json:"operation,omitempty" jsonschema_description:"Operation to resolve. Empty lists every operation."`
}

type fallbackArgs struct {
	Model string `json:"model" jsonschema_description:"Model identifier"`
}

type recordArgs struct {
	Model        string `json:"model" jsonschema_description:"Model that served the call"`
	InputTokens  int    `json:"input_tokens" jsonschema:"minimum=0"`
	OutputTokens int    `json:"output_tokens" jsonschema:"minimum=0"`
	Stage        string `json:"stage,omitempty"`
	Operation    string `json:"operation,omitempty"`
}

type statsArgs struct {
	Days int `json:"days,omitempty" jsonschema:"minimum=1" jsonschema_description:"Look-back period in days (default 7)"`
}

type noArgs struct{}

var tools = []tool{
	{
		name:        "pipeline_resolve",
		description: "Resolve the model and generation parameters for a pipeline operation",
		args:        resolveArgs{},
		handler:     handleResolve,
	},
	{
		name:        "pipeline_fallbacks",
		description: "Show the ordered fallback chain for a model",
		args:        fallbackArgs{},
		handler:     handleFallbacks,
	},
	{
		name:        "pipeline_cost_report",
		description: "Today's model spend broken down by stage, operation and model",
		args:        noArgs{},
		handler:     handleCostReport,
	},
	{
		name:        "pipeline_downgrade",
		description: "Spend against the downgrade threshold and whether models are downgraded",
		args:        noArgs{},
		handler:     handleBudget,
	},
	{
		name:        "pipeline_record_usage",
		description: "Record token usage of one model call and return its cost",
		args:        recordArgs{},
		handler:     handleRecordUsage,
	},
	{
		name:        "pipeline_stats",
		description: "Persisted usage summary by stage and model",
		args:        statsArgs{},
		handler:     handleStats,
	},
}

var (
	definitionsOnce sync.Once
	definitions     []ToolDefinition
)

func toolDefinitions() []ToolDefinition {
	definitionsOnce.Do(func() {
		r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
		for _, t := range tools {
			s := r.Reflect(t.args)
			s.Version = ""
			definitions = append(definitions, ToolDefinition{
				Name:        t.name,
				Description: t.description,
				InputSchema: s,
			})
		}
	})
	return definitions
}

func toolByName(name string) (tool, bool) {
	for _, t := range tools {
		if t.name == name {
			return t, true
		}
	}
	return tool{}, false
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func handleResolve(_ context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args resolveArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult(err.Error())
	}
	if s.deps.Resolver == nil {
		return errorResult("config resolver not available")
	}

	ops := []models.Operation{models.Operation(args.Operation)}
	if args.Operation == "" {
		ops = models.Operations()
	}
	cfgs := make([]models.ResolvedConfig, 0, len(ops))
	for _, op := range ops {
		cfg, err := s.deps.Resolver.LoadOperationConfig(string(op))
		if err != nil {
			return errorResult(err.Error())
		}
		cfgs = append(cfgs, cfg)
	}
	return textResult(formatResolved(cfgs))
}

func handleFallbacks(_ context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args fallbackArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult(err.Error())
	}
	if args.Model == "" {
		return errorResult("model is required")
	}
	if s.deps.Fallbacks == nil {
		return errorResult("fallback source not available")
	}
	return textResult(fmt.Sprintf("%s: %s", args.Model, formatChain(s.deps.Fallbacks.GetFallbackModels(args.Model))))
}

func handleCostReport(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Monitor == nil {
		return errorResult("cost monitor not available")
	}
	return textResult(formatReport(s.deps.Monitor.GetDailyReport()))
}

func handleBudget(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Monitor == nil {
		return errorResult("cost monitor not available")
	}
	return textResult(formatBudgetStatus(s.deps.Monitor.BudgetStatus()))
}

func handleRecordUsage(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args recordArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult(err.Error())
	}
	if args.Model == "" {
		return errorResult("model is required")
	}
	if s.deps.Monitor == nil {
		return errorResult("cost monitor not available")
	}
	cost, err := s.deps.Monitor.RecordUsage(ctx, args.Model, args.InputTokens, args.OutputTokens, args.Stage, args.Operation)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(fmt.Sprintf("Recorded %d input / %d output tokens on %s: $%.6f", args.InputTokens, args.OutputTokens, args.Model, cost))
}

func handleStats(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args statsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult(err.Error())
	}
	if s.deps.History == nil {
		return errorResult("usage history is not persisted")
	}
	days := args.Days
	if days <= 0 {
		days = 7
	}
	rows, err := s.deps.History.Summary(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(formatSummary(rows))
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(msg string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: msg}}, IsError: true}
}
