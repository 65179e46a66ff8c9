package scripts

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateExecutionRequestSchema produces a JSON Schema Draft 2020-12
// document for ExecutionRequest, the shape agents submit for execution.
func GenerateExecutionRequestSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&ExecutionRequest{})
	s.ID = "https://github.com/netopshq/netbox-mcp/schemas/execution-request-v0.json"
	s.Title = "NetBox Script Execution Request v0"
	s.Description = "Schema for custom script execution submissions"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal execution request schema: %w", err)
	}
	return data, nil
}

// GenerateJobStatusSchema produces a JSON Schema Draft 2020-12 document
// for JobStatus, the shape Poll and Recent return.
func GenerateJobStatusSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&JobStatus{})
	s.ID = "https://github.com/netopshq/netbox-mcp/schemas/job-status-v0.json"
	s.Title = "NetBox Script Job Status v0"
	s.Description = "Schema for custom script job status records"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job status schema: %w", err)
	}
	return data, nil
}
