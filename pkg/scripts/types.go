// Package scripts implements the NetBox custom script execution engine:
// catalog discovery, natural-language script matching, typed variable
// resolution, job submission and job tracking.
package scripts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// VarKind is the declared type of a script variable.
type VarKind string

const (
	ObjectVar  VarKind = "ObjectVar"
	StringVar  VarKind = "StringVar"
	IntegerVar VarKind = "IntegerVar"
	BooleanVar VarKind = "BooleanVar"
)

// ScriptVariable is one declared input of a custom script. For ObjectVar,
// ReferenceEndpoint names the collection its valid ids come from
// (e.g. "dcim/tenants"); values must be ids drawn from that collection.
type ScriptVariable struct {
	Name              string  `json:"name"`
	Kind              VarKind `json:"kind"`
	Required          bool    `json:"required"`
	ReferenceEndpoint string  `json:"reference_endpoint,omitempty"`
}

// ScriptDescriptor is an immutable view of one remote custom script.
// Identity is (Module, Name); ID is the opaque remote identifier used
// for execution.
type ScriptDescriptor struct {
	ID           int64            `json:"id"`
	Module       string           `json:"module"`
	Name         string           `json:"name"`
	Display      string           `json:"display"`
	Description  string           `json:"description"`
	IsExecutable bool             `json:"is_executable"`
	Variables    []ScriptVariable `json:"variables,omitempty"`
}

// ChoiceOption is one valid {id, label} pair for an ObjectVar endpoint.
type ChoiceOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// ExecutionRequest is a fully resolved script execution attempt.
// Every required variable must have an entry in Data, and every ObjectVar
// value must be an id fetched via Choices for the variable's endpoint.
type ExecutionRequest struct {
	ScriptID int64          `json:"script_id"`
	Data     map[string]any `json:"data"`
	Commit   bool           `json:"commit"`
}

// JobHandle identifies a submitted execution job. It is the sole key for
// later polling.
type JobHandle struct {
	JobID       int64     `json:"job_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JobState is the engine's finite view of a job's lifecycle.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobErrored   JobState = "errored"
)

// Terminal reports whether no further transition can occur.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobErrored
}

// ParseJobState maps a remote status value onto the known state set.
// NetBox's "scheduled" is a queued-but-not-started job, so it maps to
// pending. ok is false for values outside the known set.
func ParseJobState(raw string) (JobState, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "scheduled":
		return JobPending, true
	case "running":
		return JobRunning, true
	case "completed":
		return JobCompleted, true
	case "failed":
		return JobFailed, true
	case "errored":
		return JobErrored, true
	}
	return JobErrored, false
}

// JobStatus is a point-in-time view of a job, refreshed only by the
// Tracker re-fetching from NetBox.
type JobStatus struct {
	JobID       int64           `json:"job_id"`
	ScriptName  string          `json:"script_name,omitempty"`
	State       JobState        `json:"state"`
	Result      json.RawMessage `json:"result,omitempty"`
	Log         string          `json:"log,omitempty"`
	Created     time.Time       `json:"created"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// --- remote payload decoding ---

// rawScript is the extras/scripts list entry shape.
type rawScript struct {
	ID           int64             `json:"id"`
	Module       string            `json:"module"`
	Name         string            `json:"name"`
	Display      string            `json:"display"`
	Description  string            `json:"description"`
	IsExecutable *bool             `json:"is_executable"`
	Vars         map[string]rawVar `json:"vars"`
}

// rawVar accepts both the shorthand `"site_name": "StringVar"` form and
// the object form `{"type": "ObjectVar", "required": false, "model": "..."}`.
type rawVar struct {
	Kind     string
	Required *bool
	Model    string
}

func (v *rawVar) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v.Kind = s
		return nil
	}

	var obj struct {
		Type     string `json:"type"`
		Kind     string `json:"kind"`
		Required *bool  `json:"required"`
		Model    string `json:"model"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("script var: %w", err)
	}
	v.Kind = obj.Type
	if v.Kind == "" {
		v.Kind = obj.Kind
	}
	v.Required = obj.Required
	v.Model = obj.Model
	return nil
}

// referenceEndpoints maps well-known ObjectVar names to the collection
// their ids come from. Used when the remote var declaration carries no
// model of its own.
var referenceEndpoints = []struct {
	keyword  string
	endpoint string
}{
	{"tenant", "dcim/tenants"},
	{"region", "dcim/regions"},
	{"site", "dcim/sites"},
	{"device", "dcim/devices"},
}

// inferEndpoint guesses the reference endpoint for an ObjectVar from its
// name. Returns "" when the name matches nothing known.
func inferEndpoint(varName string) string {
	lower := strings.ToLower(varName)
	for _, r := range referenceEndpoints {
		if strings.Contains(lower, r.keyword) {
			return r.endpoint
		}
	}
	return ""
}

// descriptor converts a decoded remote script into a ScriptDescriptor.
// Variables are sorted by name so the descriptor is deterministic
// regardless of JSON map iteration order.
func (r *rawScript) descriptor() ScriptDescriptor {
	desc := ScriptDescriptor{
		ID:           r.ID,
		Module:       r.Module,
		Name:         r.Name,
		Display:      r.Display,
		Description:  r.Description,
		IsExecutable: true,
	}
	if r.IsExecutable != nil {
		desc.IsExecutable = *r.IsExecutable
	}
	if desc.Display == "" {
		desc.Display = desc.Name
	}

	names := make([]string, 0, len(r.Vars))
	for name := range r.Vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rv := r.Vars[name]
		v := ScriptVariable{
			Name:     name,
			Kind:     VarKind(rv.Kind),
			Required: true,
		}
		if rv.Required != nil {
			v.Required = *rv.Required
		}
		if v.Kind == ObjectVar {
			v.ReferenceEndpoint = strings.Trim(rv.Model, "/")
			if v.ReferenceEndpoint == "" {
				v.ReferenceEndpoint = inferEndpoint(name)
			}
		}
		desc.Variables = append(desc.Variables, v)
	}
	return desc
}

// rawJob is the core/jobs entry shape. Status arrives either as a plain
// string or as NetBox's {"value": ..., "label": ...} pair.
type rawJob struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Status    statusField     `json:"status"`
	Created   time.Time       `json:"created"`
	Completed *time.Time      `json:"completed"`
	Data      json.RawMessage `json:"data"`
}

type statusField struct {
	Value string
}

func (s *statusField) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		s.Value = str
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("job status: %w", err)
	}
	s.Value = obj.Value
	return nil
}

// status converts a raw job into a JobStatus. An unrecognised remote state
// becomes errored with the raw value preserved in the log field; absence of
// data never implies completion.
func (r *rawJob) status() JobStatus {
	st := JobStatus{
		JobID:       r.ID,
		ScriptName:  r.Name,
		Created:     r.Created,
		CompletedAt: r.Completed,
		Result:      r.Data,
		Log:         logExcerpt(r.Data),
	}
	state, known := ParseJobState(r.Status.Value)
	st.State = state
	if !known {
		note := fmt.Sprintf("unknown remote job state %q", r.Status.Value)
		if st.Log != "" {
			note += "; " + st.Log
		}
		st.Log = note
	}
	return st
}

const maxLogExcerpt = 2000

// logExcerpt pulls the script log out of a job's data payload, if present.
func logExcerpt(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var payload struct {
		Log json.RawMessage `json:"log"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Log) == 0 {
		return ""
	}
	excerpt := string(payload.Log)
	if len(excerpt) > maxLogExcerpt {
		cut := maxLogExcerpt
		// Back up to a rune boundary so the cut never splits a UTF-8
		// sequence.
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut] + "..."
	}
	return excerpt
}
