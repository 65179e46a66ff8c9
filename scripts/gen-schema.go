//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/netopshq/netbox-mcp/pkg/scripts"
)

func main() {
	data, err := scripts.GenerateExecutionRequestSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/execution-request-v1.json", data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/execution-request-v1.json")

	jobData, err := scripts.GenerateJobStatusSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating job status schema: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/job-status-v1.json", jobData, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/job-status-v1.json")
}
