package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/netopshq/netbox-mcp/pkg/netbox"
	"github.com/netopshq/netbox-mcp/pkg/scripts"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func page(results ...map[string]any) map[string]any {
	if results == nil {
		results = []map[string]any{}
	}
	return map[string]any{
		"count":    len(results),
		"next":     nil,
		"previous": nil,
		"results":  results,
	}
}

// newTestHandlers wires Handlers over a one-script fake NetBox.
func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/extras/scripts/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, page(map[string]any{
			"id":          17,
			"module":      "site_provisioning",
			"name":        "CreateSiteAndLocations",
			"display":     "Create Site And Locations",
			"description": "Create a site with per-floor locations",
			"vars": map[string]any{
				"tenant":           "ObjectVar",
				"site_name":        "StringVar",
				"number_of_floors": "IntegerVar",
			},
		}))
	})
	mux.HandleFunc("POST /api/extras/scripts/17/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"result": map[string]any{"id": 42}})
	})
	mux.HandleFunc("GET /api/core/jobs/42/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id":      42,
			"status":  map[string]any{"value": "completed"},
			"created": "2026-08-31T10:00:00Z",
		})
	})
	mux.HandleFunc("GET /api/core/jobs/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, page(map[string]any{
			"id":      42,
			"status":  map[string]any{"value": "completed"},
			"created": "2026-08-31T10:00:00Z",
		}))
	})
	mux.HandleFunc("GET /api/dcim/tenants/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, page(
			map[string]any{"id": 1, "name": "Acme Corp"},
			map[string]any{"id": 2, "name": "TechCo"},
		))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := netbox.New(srv.URL, "test-token", netbox.Options{MaxAttempts: 1})
	return &Handlers{engine: scripts.NewEngine(client, scripts.Config{})}
}

func callArgs(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func TestHandleListScripts(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleListScripts(context.Background(), callArgs(nil))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "CreateSiteAndLocations") {
		t.Error("expected script name in listing")
	}
}

func TestHandleFindScript(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleFindScript(context.Background(), callArgs(map[string]any{"query": "create site"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "\"id\": 17") {
		t.Errorf("expected script 17 in matches, got %s", resultText(t, result))
	}
}

func TestHandleFindScript_MissingQuery(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleFindScript(context.Background(), callArgs(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing query")
	}
}

func TestHandleScriptVariables(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleScriptVariables(context.Background(), callArgs(map[string]any{"script_id": float64(17)}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	text := resultText(t, result)
	if !strings.Contains(text, "tenant") || !strings.Contains(text, "dcim/tenants") {
		t.Errorf("expected tenant variable with endpoint, got %s", text)
	}
}

func TestHandleScriptVariables_MissingID(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleScriptVariables(context.Background(), callArgs(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing script_id")
	}
}

func TestHandleScriptChoices(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleScriptChoices(context.Background(), callArgs(map[string]any{"endpoint": "dcim/tenants"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "Acme Corp") {
		t.Error("expected tenant labels in choices")
	}
}

func TestHandleRunScript(t *testing.T) {
	h := newTestHandlers(t)

	// Fetch choices first so the tenant reference counts as resolved.
	if _, err := h.HandleScriptChoices(context.Background(), callArgs(map[string]any{"endpoint": "dcim/tenants"})); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleRunScript(context.Background(), callArgs(map[string]any{
		"script_id": float64(17),
		"data": map[string]any{
			"tenant":           float64(1),
			"site_name":        "DC-East-01",
			"number_of_floors": float64(3),
		},
		"commit": true,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "\"job_id\": 42") {
		t.Errorf("expected job id 42, got %s", resultText(t, result))
	}
}

func TestHandleRunScript_UnresolvedReference(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleRunScript(context.Background(), callArgs(map[string]any{
		"script_id": float64(17),
		"data": map[string]any{
			"tenant":           float64(1),
			"site_name":        "DC-East-01",
			"number_of_floors": float64(3),
		},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error when tenant was never fetched")
	}
	if !strings.Contains(resultText(t, result), "tenant") {
		t.Errorf("error should name the variable, got %s", resultText(t, result))
	}
}

func TestHandleJobStatus(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleJobStatus(context.Background(), callArgs(map[string]any{"job_id": float64(42)}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "completed") {
		t.Errorf("expected completed state, got %s", resultText(t, result))
	}
}

func TestHandleJobStatus_MissingID(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleJobStatus(context.Background(), callArgs(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing job_id")
	}
}

func TestHandleListJobs(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleListJobs(context.Background(), callArgs(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "\"count\": 1") {
		t.Errorf("expected one job, got %s", resultText(t, result))
	}
}

func TestHandleSchema(t *testing.T) {
	h := newTestHandlers(t)

	for _, schemaType := range []string{"execution-request", "job-status"} {
		result, err := h.HandleSchema(context.Background(), callArgs(map[string]any{"type": schemaType}))
		if err != nil {
			t.Fatal(err)
		}
		if result.IsError {
			t.Errorf("%s: unexpected error result: %s", schemaType, resultText(t, result))
		}
		if !strings.Contains(resultText(t, result), "$schema") {
			t.Errorf("%s: expected JSON schema output", schemaType)
		}
	}
}

func TestHandleSchema_UnknownType(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleSchema(context.Background(), callArgs(map[string]any{"type": "foo"}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for unknown schema type")
	}
}
