// Package mcpserver exposes the script execution engine as MCP tools over
// stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/netopshq/netbox-mcp/pkg/scripts"
)

// NewServer creates an MCP server with the NetBox script tools registered.
func NewServer(version string, engine *scripts.Engine) *server.MCPServer {
	s := server.NewMCPServer(
		"netbox-mcp",
		version,
		server.WithToolCapabilities(true),
	)
	h := &Handlers{engine: engine}

	s.AddTool(
		mcp.NewTool("netbox/list_scripts",
			mcp.WithDescription("List the custom scripts available on the NetBox instance, with their declared variables"),
		),
		h.HandleListScripts,
	)

	s.AddTool(
		mcp.NewTool("netbox/find_script",
			mcp.WithDescription("Rank custom scripts against a free-text query (e.g. 'create site'); an empty result means no script matched and the user should clarify"),
			mcp.WithString("query", mcp.Required(), mcp.Description("Free-text description of what the script should do")),
			mcp.WithNumber("top_k", mcp.Description("How many candidates to return (default 5)")),
		),
		h.HandleFindScript,
	)

	s.AddTool(
		mcp.NewTool("netbox/script_variables",
			mcp.WithDescription("List a script's declared variables; ObjectVar variables need an id fetched via netbox/script_choices for their reference endpoint"),
			mcp.WithNumber("script_id", mcp.Required(), mcp.Description("Script id from netbox/list_scripts")),
		),
		h.HandleScriptVariables,
	)

	s.AddTool(
		mcp.NewTool("netbox/script_choices",
			mcp.WithDescription("Enumerate the valid {id, label} choices for an ObjectVar reference endpoint (e.g. dcim/tenants); ids not returned here are rejected at submission"),
			mcp.WithString("endpoint", mcp.Required(), mcp.Description("Reference endpoint, e.g. dcim/tenants")),
		),
		h.HandleScriptChoices,
	)

	s.AddTool(
		mcp.NewTool("netbox/run_script",
			mcp.WithDescription("Submit a custom script execution; every required variable must be present and every ObjectVar value must come from netbox/script_choices"),
			mcp.WithNumber("script_id", mcp.Required(), mcp.Description("Script id from netbox/list_scripts")),
			mcp.WithObject("data", mcp.Description("Variable name to value mapping")),
			mcp.WithBoolean("commit", mcp.Description("Commit changes; false requests a dry run (default false)")),
		),
		h.HandleRunScript,
	)

	s.AddTool(
		mcp.NewTool("netbox/job_status",
			mcp.WithDescription("Poll the status of a script execution job by the job id returned from netbox/run_script"),
			mcp.WithNumber("job_id", mcp.Required(), mcp.Description("Job id from netbox/run_script")),
		),
		h.HandleJobStatus,
	)

	s.AddTool(
		mcp.NewTool("netbox/list_jobs",
			mcp.WithDescription("List recent script execution jobs, most recent first"),
			mcp.WithNumber("limit", mcp.Description("Maximum number of jobs to return (default 50)")),
			mcp.WithString("script_name", mcp.Description("Only jobs for this script name (filtered server-side)")),
			mcp.WithString("filter", mcp.Description("Optional boolean filter expression over job_id, name, state, completed, e.g. state == \"failed\"")),
		),
		h.HandleListJobs,
	)

	s.AddTool(
		mcp.NewTool("netbox/schema",
			mcp.WithDescription("Export the JSON Schema of an engine type"),
			mcp.WithString("type", mcp.Required(), mcp.Description("Schema type: 'execution-request' or 'job-status'")),
		),
		h.HandleSchema,
	)

	return s
}
