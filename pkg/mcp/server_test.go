package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/pariopipe/pkg/models"
)

type fakeResolver struct{}

func (fakeResolver) LoadOperationConfig(op string) (models.ResolvedConfig, error) {
	stage, ok := models.StageFor(op)
	if !ok {
		return models.ResolvedConfig{}, errors.New("unknown operation: " + op)
	}
	return models.ResolvedConfig{
		Operation: models.Operation(op),
		Stage:     stage,
		Model:     "claude-3-5-sonnet-20241022",
		Params:    models.Params{Temperature: 0.3, MaxTokens: 4000, TopP: 1, BatchSize: 10},
		Fallbacks: []string{"claude-3-5-haiku-20241022"},
	}, nil
}

type fakeFallbacks map[string][]string

func (f fakeFallbacks) GetFallbackModels(model string) []string { return f[model] }

type fakeMonitor struct {
	report   models.DailyReport
	status   models.BudgetStatus
	recorded []string
}

func (f *fakeMonitor) RecordUsage(_ context.Context, model string, in, out int, _, _ string) (float64, error) {
	if in < 0 || out < 0 {
		return 0, errors.New("negative token count")
	}
	f.recorded = append(f.recorded, model)
	return 0.00105, nil
}
func (f *fakeMonitor) GetDailyReport() models.DailyReport { return f.report }
func (f *fakeMonitor) BudgetStatus() models.BudgetStatus  { return f.status }

type fakeHistory struct {
	rows  []models.UsageSummary
	since time.Time
}

func (f *fakeHistory) Summary(_ context.Context, since time.Time) ([]models.UsageSummary, error) {
	f.since = since
	return f.rows, nil
}

func newTestServer(mon *fakeMonitor, hist UsageHistory) *Server {
	return New(Deps{
		Resolver:  fakeResolver{},
		Fallbacks: fakeFallbacks{"claude-sonnet-4-20250514": {"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"}},
		Monitor:   mon,
		History:   hist,
	}, "test")
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	require.NoError(t, err)
	line = append(line, '\n')

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), bytes.NewReader(line), &out))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "raw: %s", out.String())
	return resp
}

func decodeResult(t *testing.T, resp Response, v any) {
	t.Helper()
	require.Nil(t, resp.Error)
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": json.RawMessage(args)})
	require.NoError(t, err)
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`7`),
		Method:  "tools/call",
		Params:  params,
	})
	var res ToolCallResult
	decodeResult(t, resp, &res)
	require.Len(t, res.Content, 1)
	return res
}

func TestInitialize(t *testing.T) {
	srv := newTestServer(&fakeMonitor{}, nil)
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"})

	var res InitializeResult
	decodeResult(t, resp, &res)
	assert.Equal(t, ProtocolVersion, res.ProtocolVersion)
	assert.Equal(t, "pariopipe", res.ServerInfo.Name)
	assert.Equal(t, "test", res.ServerInfo.Version)
}

func TestNotificationHasNoResponse(t *testing.T) {
	srv := newTestServer(&fakeMonitor{}, nil)
	var out bytes.Buffer
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	require.NoError(t, srv.Run(context.Background(), in, &out))
	assert.Empty(t, out.String())
}

func TestParseAndMethodErrors(t *testing.T) {
	srv := newTestServer(&fakeMonitor{}, nil)

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), strings.NewReader("{not json\n"), &out))
	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)

	resp = sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "resources/list"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)

	resp = sendAndReceive(t, srv, Request{JSONRPC: "1.0", ID: json.RawMessage(`3`), Method: "tools/list"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestToolsList(t *testing.T) {
	srv := newTestServer(&fakeMonitor{}, nil)
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/list"})

	var res struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	decodeResult(t, resp, &res)

	names := make([]string, 0, len(res.Tools))
	schemas := make(map[string]map[string]any)
	for _, tl := range res.Tools {
		names = append(names, tl.Name)
		schemas[tl.Name] = tl.InputSchema
	}
	assert.ElementsMatch(t, []string{
		"pipeline_resolve", "pipeline_fallbacks", "pipeline_cost_report",
		"pipeline_downgrade", "pipeline_record_usage", "pipeline_stats",
	}, names)

	rec := schemas["pipeline_record_usage"]
	assert.Equal(t, "object", rec["type"])
	assert.ElementsMatch(t, []any{"model", "input_tokens", "output_tokens"}, rec["required"])
	props, ok := rec["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "stage")
	assert.NotContains(t, schemas["pipeline_resolve"], "required")
}

func TestToolResolve(t *testing.T) {
	srv := newTestServer(&fakeMonitor{}, nil)

	res := callTool(t, srv, "pipeline_resolve", `{"operation":"sentiment_analysis"}`)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "sentiment_analysis")
	assert.Contains(t, res.Content[0].Text, "claude-3-5-haiku-20241022")

	res = callTool(t, srv, "pipeline_resolve", `{}`)
	assert.False(t, res.IsError)
	for _, op := range models.Operations() {
		assert.Contains(t, res.Content[0].Text, op)
	}

	res = callTool(t, srv, "pipeline_resolve", `{"operation":"summarize"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "summarize")
}

func TestToolFallbacks(t *testing.T) {
	srv := newTestServer(&fakeMonitor{}, nil)

	res := callTool(t, srv, "pipeline_fallbacks", `{"model":"claude-sonnet-4-20250514"}`)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "claude-3-5-sonnet-20241022 -> claude-3-5-haiku-20241022")

	res = callTool(t, srv, "pipeline_fallbacks", `{"model":"claude-3-5-haiku-20241022"}`)
	assert.Contains(t, res.Content[0].Text, "(none)")

	res = callTool(t, srv, "pipeline_fallbacks", `{}`)
	assert.True(t, res.IsError)
}

func TestToolCostReportAndBudget(t *testing.T) {
	mon := &fakeMonitor{
		report: models.DailyReport{
			Date:      "2026-10-15",
			TotalCost: 0.00105,
			Calls:     1,
			ByStage:   map[string]models.Breakdown{"sentiment": {Calls: 1, Cost: 0.00105}},
			ByModel:   map[string]models.Breakdown{"claude-3-5-sonnet-20241022": {Calls: 1, Cost: 0.00105}},
			Unpriced:  []string{"mystery-model"},
		},
		status: models.BudgetStatus{Metric: models.MetricDailyTotal, Threshold: 10, Used: 12, Downgrade: true},
	}
	srv := newTestServer(mon, nil)

	res := callTool(t, srv, "pipeline_cost_report", `{}`)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "$0.001050")
	assert.Contains(t, res.Content[0].Text, "sentiment")
	assert.Contains(t, res.Content[0].Text, "mystery-model")

	res = callTool(t, srv, "pipeline_downgrade", `{}`)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "ACTIVE")
}

func TestToolRecordUsage(t *testing.T) {
	mon := &fakeMonitor{}
	srv := newTestServer(mon, nil)

	res := callTool(t, srv, "pipeline_record_usage",
		`{"model":"claude-3-5-sonnet-20241022","input_tokens":100,"output_tokens":50,"stage":"sentiment"}`)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "$0.001050")
	assert.Equal(t, []string{"claude-3-5-sonnet-20241022"}, mon.recorded)

	res = callTool(t, srv, "pipeline_record_usage", `{"model":"m","input_tokens":-1,"output_tokens":0}`)
	assert.True(t, res.IsError)

	res = callTool(t, srv, "pipeline_record_usage", `{"input_tokens":1}`)
	assert.True(t, res.IsError)
	assert.Len(t, mon.recorded, 1)
}

func TestToolStats(t *testing.T) {
	hist := &fakeHistory{rows: []models.UsageSummary{
		{Stage: "political", Model: "claude-sonnet-4-20250514", Calls: 3, InputTokens: 900, OutputTokens: 300, Cost: 0.0072},
	}}
	srv := newTestServer(&fakeMonitor{}, hist)

	before := time.Now()
	res := callTool(t, srv, "pipeline_stats", `{"days":2}`)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "political")
	assert.WithinDuration(t, before.AddDate(0, 0, -2), hist.since, time.Minute)

	res = callTool(t, newTestServer(&fakeMonitor{}, nil), "pipeline_stats", `{}`)
	assert.True(t, res.IsError)
}

func TestUnknownTool(t *testing.T) {
	res := callTool(t, newTestServer(&fakeMonitor{}, nil), "pipeline_nope", `{}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "unknown tool")
}
