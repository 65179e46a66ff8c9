// Package main provides the netbox-mcp binary, an MCP stdio server that
// exposes NetBox custom script execution to AI agents.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/netopshq/netbox-mcp/pkg/config"
	"github.com/netopshq/netbox-mcp/pkg/mcpserver"
	"github.com/netopshq/netbox-mcp/pkg/netbox"
	"github.com/netopshq/netbox-mcp/pkg/scripts"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath string
	debug      bool
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)

	// stdout is the MCP protocol channel; all logging goes to stderr.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC822})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets any
// variables that aren't already set in the environment. Lines are
// KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so tokens never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file is fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "netbox-mcp",
	Short: "NetBox custom script MCP server",
	Long:  "netbox-mcp is an MCP server exposing NetBox custom script discovery, variable resolution and execution tracking to AI agents.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over stdio",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	client := netbox.New(cfg.NetBoxURL, cfg.NetBoxToken, netbox.Options{
		VerifySSL:   cfg.VerifySSL,
		Timeout:     time.Duration(cfg.HTTPTimeout),
		MaxAttempts: cfg.RetryMaxAttempts,
	})
	engine := scripts.NewEngine(client, scripts.Config{
		CatalogTTL:        time.Duration(cfg.CatalogTTL),
		ChoicesPageSize:   cfg.Choices.PageSize,
		ChoicesMaxResults: cfg.Choices.MaxResults,
		JobsDefaultLimit:  cfg.Jobs.DefaultLimit,
	})

	log.Info().Str("netbox_url", cfg.NetBoxURL).Bool("verify_ssl", cfg.VerifySSL).Msg("starting MCP server on stdio")
	return server.ServeStdio(mcpserver.NewServer(version, engine))
}

var schemaCmd = &cobra.Command{
	Use:   "schema [execution-request|job-status]",
	Short: "Export the JSON Schema of an engine type",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	switch args[0] {
	case "execution-request":
		data, err = scripts.GenerateExecutionRequestSchema()
	case "job-status":
		data, err = scripts.GenerateJobStatusSchema()
	default:
		return fmt.Errorf("unknown schema type %q, use 'execution-request' or 'job-status'", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("netbox-mcp %s (%s)\n", version, commit)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: $NETBOX_MCP_CONFIG or netbox-mcp.yaml)")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd, schemaCmd, versionCmd)
}
