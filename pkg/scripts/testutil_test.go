package scripts

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/netopshq/netbox-mcp/pkg/netbox"
)

// fakeNetBox is an in-memory NetBox API good enough for the engine: a
// script list, paginated reference collections, script submission and the
// jobs endpoint. Request counts are tracked per path prefix so tests can
// assert caching behaviour.
type fakeNetBox struct {
	mu sync.Mutex

	scripts      []map[string]any
	choices      map[string][]map[string]any
	jobs         map[int64]map[string]any
	submitStatus int
	submitBody   map[string]any

	requests map[string]int
}

func newFakeNetBox() *fakeNetBox {
	return &fakeNetBox{
		choices:      make(map[string][]map[string]any),
		jobs:         make(map[int64]map[string]any),
		submitStatus: http.StatusOK,
		requests:     make(map[string]int),
	}
}

var (
	scriptPathRe = regexp.MustCompile(`^/api/extras/scripts/(\d+)/$`)
	jobPathRe    = regexp.MustCompile(`^/api/core/jobs/(\d+)/$`)
)

func (f *fakeNetBox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[r.URL.Path]++

	switch {
	case r.URL.Path == "/api/extras/scripts/" && r.Method == http.MethodGet:
		writePage(w, f.scripts, 0, len(f.scripts), len(f.scripts))

	case scriptPathRe.MatchString(r.URL.Path) && r.Method == http.MethodPost:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.submitStatus)
		json.NewEncoder(w).Encode(f.submitBody)

	case jobPathRe.MatchString(r.URL.Path) && r.Method == http.MethodGet:
		id, _ := strconv.ParseInt(jobPathRe.FindStringSubmatch(r.URL.Path)[1], 10, 64)
		job, ok := f.jobs[id]
		if !ok {
			http.Error(w, `{"detail": "Not found."}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(job)

	case r.URL.Path == "/api/core/jobs/" && r.Method == http.MethodGet:
		name := r.URL.Query().Get("name")
		var all []map[string]any
		for _, job := range f.jobs {
			if name != "" && job["name"] != name {
				continue
			}
			all = append(all, job)
		}
		writePage(w, all, 0, len(all), len(all))

	case r.Method == http.MethodGet:
		// Everything else is a reference collection.
		endpoint := trimAPIPath(r.URL.Path)
		objects, ok := f.choices[endpoint]
		if !ok {
			http.Error(w, `{"detail": "Not found."}`, http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", len(objects))
		offset := queryInt(r, "offset", 0)
		end := offset + limit
		if end > len(objects) {
			end = len(objects)
		}
		if offset > len(objects) {
			offset = len(objects)
		}
		writePage(w, objects[offset:end], offset, end, len(objects))

	default:
		http.Error(w, `{"detail": "Method not allowed."}`, http.StatusMethodNotAllowed)
	}
}

func writePage(w http.ResponseWriter, results []map[string]any, offset, end, count int) {
	page := map[string]any{
		"count":   count,
		"results": results,
	}
	if end < count {
		next := fmt.Sprintf("?limit=%d&offset=%d", end-offset, end)
		page["next"] = next
	} else {
		page["next"] = nil
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

func trimAPIPath(path string) string {
	const prefix = "/api/"
	trimmed := path
	if len(trimmed) > len(prefix) {
		trimmed = trimmed[len(prefix):]
	}
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (f *fakeNetBox) requestCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

// testEngine spins up the fake behind a real engine. The returned cleanup
// is registered with t automatically.
func testEngine(t *testing.T, fake *fakeNetBox, cfg Config) *Engine {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := netbox.New(srv.URL, "test-token", netbox.Options{VerifySSL: true})
	return NewEngine(client, cfg)
}

// deadEngine returns an engine pointed at a server that is already gone,
// so every remote call fails at the transport level.
func deadEngine(t *testing.T) *Engine {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := netbox.New(srv.URL, "test-token", netbox.Options{VerifySSL: true, MaxAttempts: 1})
	return NewEngine(client, Config{})
}

// sampleScripts is the catalog used across tests: the CreateSiteAndLocations
// scenario script plus neighbours exercising both vars payload forms.
func sampleScripts() []map[string]any {
	return []map[string]any{
		{
			"id":          17,
			"module":      "site_provisioning",
			"name":        "CreateSiteAndLocations",
			"display":     "Create Site And Locations",
			"description": "Create a new site with floors",
			"vars": map[string]any{
				"tenant":           "ObjectVar",
				"site_name":        "StringVar",
				"number_of_floors": "IntegerVar",
			},
		},
		{
			"id":          21,
			"module":      "site_provisioning",
			"name":        "ProvisionNewSite",
			"display":     "Provision New Site",
			"description": "Provision a complete site with VLANs and IP space",
			"vars": map[string]any{
				"region": map[string]any{
					"type":  "ObjectVar",
					"model": "dcim/regions",
				},
				"dry_run_notes": map[string]any{
					"type":     "StringVar",
					"required": false,
				},
				"enable_ipam": "BooleanVar",
			},
		},
		{
			"id":            30,
			"module":        "compliance",
			"name":          "AuditDeviceNaming",
			"display":       "Audit Device Naming",
			"description":   "Check device names against the naming convention",
			"is_executable": false,
			"vars":          map[string]any{},
		},
	}
}
