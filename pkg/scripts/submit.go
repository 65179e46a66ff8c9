package scripts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/netopshq/netbox-mcp/pkg/netbox"
)

// Submitter validates an ExecutionRequest against the script's declared
// variables and submits it to NetBox. Validation never substitutes
// defaults: a missing or unverified value is reported, because a silently
// defaulted ObjectVar could write to the wrong remote object.
type Submitter struct {
	client   *netbox.Client
	catalog  *Catalog
	resolver *Resolver
}

// NewSubmitter wires a submitter over the shared catalog and resolver.
func NewSubmitter(client *netbox.Client, catalog *Catalog, resolver *Resolver) *Submitter {
	return &Submitter{client: client, catalog: catalog, resolver: resolver}
}

// Submit validates and submits one execution request.
//
// Validation order: the script must exist in the catalog; every required
// variable must be present and every present value must match its declared
// kind; every ObjectVar value must be an id fetched via Choices for the
// variable's endpoint in this session. commit=false is forwarded verbatim
// as a dry-run request; NetBox decides the actual dry-run semantics.
func (s *Submitter) Submit(ctx context.Context, req ExecutionRequest) (JobHandle, error) {
	desc, err := s.catalog.Get(ctx, req.ScriptID)
	if err != nil {
		return JobHandle{}, err
	}

	if err := s.validateTypes(desc, req.Data); err != nil {
		return JobHandle{}, err
	}
	if err := s.validateReferences(desc, req.Data); err != nil {
		return JobHandle{}, err
	}

	payload := map[string]any{
		"data":   req.Data,
		"commit": req.Commit,
	}

	var resp submitResponse
	path := fmt.Sprintf("%s/%d", scriptsEndpoint, req.ScriptID)
	if err := s.client.Post(ctx, path, payload, &resp); err != nil {
		if apiErr, rejected := netbox.IsRejection(err); rejected {
			return JobHandle{}, &SubmissionRejectedError{
				ScriptID:   req.ScriptID,
				StatusCode: apiErr.StatusCode,
				Detail:     apiErr.Body,
			}
		}
		return JobHandle{}, &UpstreamError{Endpoint: path, Err: err}
	}

	jobID, ok := resp.jobID()
	if !ok {
		return JobHandle{}, fmt.Errorf("script %d: submission accepted but no job id in response", req.ScriptID)
	}

	handle := JobHandle{JobID: jobID, SubmittedAt: time.Now().UTC()}
	log.Info().
		Str("request_id", uuid.NewString()).
		Int64("script_id", req.ScriptID).
		Int64("job_id", handle.JobID).
		Bool("commit", req.Commit).
		Msg("script submitted")
	return handle, nil
}

// validateTypes checks required presence and value kinds by validating the
// data payload against a JSON Schema built from the variable declarations.
func (s *Submitter) validateTypes(desc *ScriptDescriptor, data map[string]any) error {
	schemaDoc := variablesSchema(desc.Variables)

	compiler := sjsonschema.NewCompiler()
	if err := compiler.AddResource("vars.json", schemaDoc); err != nil {
		return fmt.Errorf("script %d: build variable schema: %w", desc.ID, err)
	}
	sch, err := compiler.Compile("vars.json")
	if err != nil {
		return fmt.Errorf("script %d: compile variable schema: %w", desc.ID, err)
	}

	// Round-trip through JSON so values carry plain JSON types.
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("script %d: encode data: %w", desc.ID, err)
	}
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("script %d: decode data: %w", desc.ID, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	if err := sch.Validate(doc); err != nil {
		return &InvalidRequestError{
			ScriptID: desc.ID,
			Variable: offendingVariable(err),
			Reason:   err.Error(),
		}
	}
	return nil
}

// variablesSchema builds a JSON Schema document for a script's data
// payload from its variable declarations. Unknown variable kinds get no
// type constraint; NetBox validates those itself.
func variablesSchema(vars []ScriptVariable) map[string]any {
	properties := make(map[string]any, len(vars))
	var required []any
	for _, v := range vars {
		switch v.Kind {
		case StringVar:
			properties[v.Name] = map[string]any{"type": "string"}
		case IntegerVar, ObjectVar:
			properties[v.Name] = map[string]any{"type": "integer"}
		case BooleanVar:
			properties[v.Name] = map[string]any{"type": "boolean"}
		default:
			properties[v.Name] = map[string]any{}
		}
		if v.Required {
			required = append(required, v.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// offendingVariable extracts the failing property name from a validation
// error, when the error points at one.
func offendingVariable(err error) string {
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return ""
	}
	return firstInstanceLocation(ve)
}

func firstInstanceLocation(ve *sjsonschema.ValidationError) string {
	if len(ve.InstanceLocation) > 0 {
		return ve.InstanceLocation[0]
	}
	for _, cause := range ve.Causes {
		if loc := firstInstanceLocation(cause); loc != "" {
			return loc
		}
	}
	return ""
}

// validateReferences enforces the resolution policy for ObjectVars.
func (s *Submitter) validateReferences(desc *ScriptDescriptor, data map[string]any) error {
	for _, v := range desc.Variables {
		if v.Kind != ObjectVar {
			continue
		}
		value, present := data[v.Name]
		if !present {
			continue // absence of an optional ObjectVar is fine; required is caught above
		}
		id, ok := toInt64(value)
		if !ok {
			return &UnresolvedReferenceError{Variable: v.Name, Endpoint: v.ReferenceEndpoint, Value: value}
		}
		if v.ReferenceEndpoint == "" || !s.resolver.Resolved(v.ReferenceEndpoint, id) {
			return &UnresolvedReferenceError{Variable: v.Name, Endpoint: v.ReferenceEndpoint, Value: value}
		}
	}
	return nil
}

// toInt64 accepts the integer shapes a JSON decode or an MCP argument map
// can produce.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

// submitResponse tolerates the job-id shapes NetBox has used for script
// submissions: nested under result, nested under job, or top level.
type submitResponse struct {
	Result *struct {
		ID int64 `json:"id"`
	} `json:"result"`
	Job *struct {
		ID int64 `json:"id"`
	} `json:"job"`
	ID int64 `json:"id"`
}

func (r *submitResponse) jobID() (int64, bool) {
	switch {
	case r.Result != nil && r.Result.ID > 0:
		return r.Result.ID, true
	case r.Job != nil && r.Job.ID > 0:
		return r.Job.ID, true
	case r.ID > 0:
		return r.ID, true
	}
	return 0, false
}
