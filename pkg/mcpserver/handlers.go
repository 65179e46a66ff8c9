package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/netopshq/netbox-mcp/pkg/scripts"
)

// Handlers implements the MCP tool handlers over one engine instance.
type Handlers struct {
	engine *scripts.Engine
}

// HandleListScripts implements the netbox/list_scripts tool.
func (h *Handlers) HandleListScripts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	descriptors, err := h.engine.Catalog.List(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"count":   len(descriptors),
		"scripts": descriptors,
	}), nil
}

// HandleFindScript implements the netbox/find_script tool.
func (h *Handlers) HandleFindScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return errorResult("query argument is required"), nil
	}
	topK := intArg(args, "top_k", 0)

	matches, err := h.engine.Find(ctx, query, topK)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"query":   query,
		"count":   len(matches),
		"matches": matches,
	}), nil
}

// HandleScriptVariables implements the netbox/script_variables tool.
func (h *Handlers) HandleScriptVariables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	scriptID := int64Arg(args, "script_id")
	if scriptID <= 0 {
		return errorResult("script_id argument is required"), nil
	}

	vars, err := h.engine.Resolver.Variables(ctx, scriptID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"script_id": scriptID,
		"variables": vars,
	}), nil
}

// HandleScriptChoices implements the netbox/script_choices tool.
func (h *Handlers) HandleScriptChoices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	endpoint, _ := args["endpoint"].(string)
	if endpoint == "" {
		return errorResult("endpoint argument is required"), nil
	}

	choices, err := h.engine.Resolver.Choices(ctx, endpoint)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"endpoint": endpoint,
		"count":    len(choices),
		"choices":  choices,
	}), nil
}

// HandleRunScript implements the netbox/run_script tool.
func (h *Handlers) HandleRunScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	scriptID := int64Arg(args, "script_id")
	if scriptID <= 0 {
		return errorResult("script_id argument is required"), nil
	}
	data, _ := args["data"].(map[string]any)
	commit, _ := args["commit"].(bool) // default false: dry run unless asked

	handle, err := h.engine.Submitter.Submit(ctx, scripts.ExecutionRequest{
		ScriptID: scriptID,
		Data:     data,
		Commit:   commit,
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"script_id":    scriptID,
		"job_id":       handle.JobID,
		"submitted_at": handle.SubmittedAt,
		"commit":       commit,
		"message":      "script execution started; poll netbox/job_status with job_id",
	}), nil
}

// HandleJobStatus implements the netbox/job_status tool.
func (h *Handlers) HandleJobStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	jobID := int64Arg(args, "job_id")
	if jobID <= 0 {
		return errorResult("job_id argument is required"), nil
	}

	status, err := h.engine.Tracker.Poll(ctx, jobID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(status), nil
}

// HandleListJobs implements the netbox/list_jobs tool.
func (h *Handlers) HandleListJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	limit := intArg(args, "limit", 0)
	scriptName, _ := args["script_name"].(string)
	filter, _ := args["filter"].(string)

	jobs, err := h.engine.Tracker.Recent(ctx, limit, scriptName, filter)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"count": len(jobs),
		"jobs":  jobs,
	}), nil
}

// HandleSchema implements the netbox/schema tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	schemaType, _ := args["type"].(string)

	var data []byte
	var err error
	switch schemaType {
	case "execution-request":
		data, err = scripts.GenerateExecutionRequestSchema()
	case "job-status":
		data, err = scripts.GenerateJobStatusSchema()
	default:
		return errorResult(fmt.Sprintf("unknown schema type %q, use 'execution-request' or 'job-status'", schemaType)), nil
	}
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// intArg reads a numeric argument; MCP arguments arrive as float64.
func intArg(args map[string]any, key string, fallback int) int {
	if n, ok := args[key].(float64); ok {
		return int(n)
	}
	return fallback
}

func int64Arg(args map[string]any, key string) int64 {
	if n, ok := args[key].(float64); ok {
		return int64(n)
	}
	return 0
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err))
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
