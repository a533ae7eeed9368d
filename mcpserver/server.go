// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the sandbox runner as the run_code tool. It
// uses the mark3labs/mcp-go library to handle the protocol details and accepts
// the same arguments as the HTTP run API.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/johnnyeric/docker-run/api"
	"github.com/johnnyeric/docker-run/config"
	"github.com/johnnyeric/docker-run/daemon"
	"github.com/johnnyeric/docker-run/sandbox"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	runner    sandbox.Runner
	defaults  daemon.Defaults
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, runner sandbox.Runner) (*MCPServer, error) {
	defaults, err := sandbox.ContainerDefaults(cfg)
	if err != nil {
		return nil, err
	}

	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		runner:   runner,
		defaults: defaults,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.String("docker.socket", cfg.Docker.Socket),
		zap.String("sandbox.backend", cfg.Sandbox.Backend),
		zap.String("sandbox.memory", cfg.Sandbox.Memory),
		zap.Int64("sandbox.pids_limit", cfg.Sandbox.PidsLimit),
		zap.Bool("sandbox.network_disabled", cfg.Sandbox.NetworkDisabled),
		zap.Bool("sandbox.readonly_rootfs", cfg.Sandbox.ReadonlyRootfs),
	)

	s.mcpServer = server.NewMCPServer("docker-run", "Runs code in single-use containers")
	s.registerRunCodeTool()

	return s, nil
}

func (s *MCPServer) registerRunCodeTool() {
	tool := mcp.Tool{
		Name:        "run_code",
		Description: "Run a code runner image with a JSON payload on stdin and return the JSON it prints",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"image": map[string]any{
					"type":        "string",
					"description": "Code runner image",
				},
				"limits": map[string]any{
					"type":        "object",
					"description": "Execution ceilings",
					"properties": map[string]any{
						"maxExecutionTime": map[string]any{
							"type":        "integer",
							"description": "Wall-clock limit in seconds",
							"minimum":     1,
							"maximum":     api.MaxExecutionTimeSeconds,
						},
						"maxOutputSize": map[string]any{
							"type":        "integer",
							"description": "Output limit in bytes, per stream",
							"minimum":     1,
						},
					},
					"required": []string{"maxExecutionTime", "maxOutputSize"},
				},
				"payload": map[string]any{
					"type":        "object",
					"description": "JSON object written to the container's stdin",
				},
			},
			Required: []string{"image", "limits", "payload"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRunCode)
}

// handleRunCode reports run failures as tool errors carrying the same
// {"error","message"} body as the HTTP API.
func (s *MCPServer) handleRunCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(request.GetArguments())
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	body, errBody := api.ParseRunBody(data)
	if errBody != nil {
		return errorResult(*errBody), nil
	}

	s.logger.Info("run requested",
		zap.String("image", body.Image),
		zap.Uint64("max_execution_time_sec", body.Limits.MaxExecutionTime),
		zap.Int("max_output_size", body.Limits.MaxOutputSize))

	result, err := s.runner.Run(ctx, body.RunRequest(s.defaults))
	if err != nil {
		return errorResult(api.RunErrorBody(err)), nil
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return mcp.NewToolResultText(string(resultJSON)), nil
}

func errorResult(body api.ErrorBody) *mcp.CallToolResult {
	text, err := json.Marshal(body)
	if err != nil {
		text = []byte(body.Message)
	}
	return mcp.NewToolResultError(string(text))
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
