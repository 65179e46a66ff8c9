package scripts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"

	"github.com/netopshq/netbox-mcp/pkg/netbox"
)

const (
	jobsEndpoint = "core/jobs"

	// DefaultJobsLimit bounds Recent when the caller gives no limit.
	DefaultJobsLimit = 50
)

// Tracker polls execution jobs by handle. Each Poll performs at most one
// remote fetch and never sleeps; polling cadence belongs to the caller.
//
// Terminal states are pinned: once a job has been observed completed,
// failed or errored, later polls return that status even if the remote
// system drifts and reports the job as pending or running again.
type Tracker struct {
	client       *netbox.Client
	defaultLimit int

	mu       sync.RWMutex
	terminal map[int64]JobStatus
}

// NewTracker creates a tracker. defaultLimit <= 0 selects DefaultJobsLimit.
func NewTracker(client *netbox.Client, defaultLimit int) *Tracker {
	if defaultLimit <= 0 {
		defaultLimit = DefaultJobsLimit
	}
	return &Tracker{
		client:       client,
		defaultLimit: defaultLimit,
		terminal:     make(map[int64]JobStatus),
	}
}

// Poll returns the current status of one job.
func (t *Tracker) Poll(ctx context.Context, jobID int64) (JobStatus, error) {
	t.mu.RLock()
	pinned, done := t.terminal[jobID]
	t.mu.RUnlock()
	if done {
		return pinned, nil
	}

	var raw rawJob
	if err := t.client.Get(ctx, jobsEndpoint, jobID, &raw); err != nil {
		if apiErr, clientSide := netbox.IsRejection(err); clientSide {
			return JobStatus{}, fmt.Errorf("job %d: %w", jobID, apiErr)
		}
		return JobStatus{}, &UpstreamError{Endpoint: jobsEndpoint, Err: err}
	}

	status := raw.status()
	status.JobID = jobID
	if status.State.Terminal() {
		t.mu.Lock()
		t.terminal[jobID] = status
		t.mu.Unlock()
		log.Debug().Int64("job_id", jobID).Str("state", string(status.State)).Msg("job reached terminal state")
	}
	return status, nil
}

// Recent lists recent script execution jobs, most recent first. scriptName
// is optional and filters by script name on the server side, so the page
// NetBox returns is already narrowed before the limit applies. filter is an
// optional boolean expression evaluated per job with job_id, name, state
// and completed in scope, e.g. `state == "failed"`.
func (t *Tracker) Recent(ctx context.Context, limit int, scriptName, filter string) ([]JobStatus, error) {
	if limit <= 0 {
		limit = t.defaultLimit
	}

	var program *vm.Program
	if filter != "" {
		var err error
		program, err = compileJobFilter(filter)
		if err != nil {
			return nil, err
		}
	}

	params := url.Values{
		"limit":       {fmt.Sprint(limit)},
		"object_type": {"extras.script"},
		"ordering":    {"-created"},
	}
	if scriptName != "" {
		params.Set("name", scriptName)
	}
	page, err := t.client.List(ctx, jobsEndpoint, params)
	if err != nil {
		return nil, &UpstreamError{Endpoint: jobsEndpoint, Err: err}
	}

	statuses := make([]JobStatus, 0, len(page.Results))
	for _, entry := range page.Results {
		var raw rawJob
		if err := json.Unmarshal(entry, &raw); err != nil {
			log.Warn().Err(err).Msg("skipping undecodable job entry")
			continue
		}
		status := raw.status()

		if program != nil {
			keep, err := evalJobFilter(program, status)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
		}
		statuses = append(statuses, status)
	}

	// Guarantee the ordering regardless of remote defaults.
	sort.SliceStable(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})
	if len(statuses) > limit {
		statuses = statuses[:limit]
	}
	return statuses, nil
}

func compileJobFilter(filter string) (*vm.Program, error) {
	program, err := expr.Compile(filter, expr.Env(jobFilterEnv(JobStatus{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile job filter %q: %w", filter, err)
	}
	return program, nil
}

func evalJobFilter(program *vm.Program, status JobStatus) (bool, error) {
	output, err := expr.Run(program, jobFilterEnv(status))
	if err != nil {
		return false, fmt.Errorf("eval job filter: %w", err)
	}
	keep, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("job filter did not return bool (got %T)", output)
	}
	return keep, nil
}

func jobFilterEnv(status JobStatus) map[string]any {
	return map[string]any{
		"job_id":    status.JobID,
		"name":      status.ScriptName,
		"state":     string(status.State),
		"completed": status.CompletedAt != nil,
	}
}
