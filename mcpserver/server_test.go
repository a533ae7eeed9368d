package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/johnnyeric/docker-run/config"
	"github.com/johnnyeric/docker-run/sandbox"
)

// MockRunner implements sandbox.Runner for testing
type MockRunner struct {
	result sandbox.RunResult
	err    error
	calls  []sandbox.RunRequest
}

func (m *MockRunner) Run(_ context.Context, req sandbox.RunRequest) (sandbox.RunResult, error) { //nolint:gocritic // Mock implementation requires full parameter signature
	m.calls = append(m.calls, req)
	return m.result, m.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sandbox: config.SandboxConfig{
			Backend:         "docker",
			Memory:          "256m",
			PidsLimit:       128,
			NetworkDisabled: true,
		},
		Logging: config.LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func callRunCode(t *testing.T, s *MCPServer, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = "run_code"
	req.Params.Arguments = args

	result, err := s.handleRunCode(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func validArgs() map[string]any {
	return map[string]any{
		"image":   "coderunner/node",
		"limits":  map[string]any{"maxExecutionTime": 5, "maxOutputSize": 4096},
		"payload": map[string]any{"code": "console.log(1)"},
	}
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	runner := &MockRunner{}

	server, err := New(cfg, logger, runner)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, logger, server.logger)
	assert.Equal(t, runner, server.runner)
	assert.NotNil(t, server.GetMCPServer())
	assert.Equal(t, int64(256*1024*1024), server.defaults.Memory)
}

func TestNewMCPServerInvalidMemory(t *testing.T) {
	cfg := testConfig()
	cfg.Sandbox.Memory = "-1"

	_, err := New(cfg, zaptest.NewLogger(t), &MockRunner{})
	assert.Error(t, err)
}

func TestRunCodeSuccess(t *testing.T) {
	runner := &MockRunner{result: sandbox.RunResult{Value: map[string]any{"stdout": "1\n", "ok": true}}}
	server, err := New(testConfig(), zaptest.NewLogger(t), runner)
	require.NoError(t, err)

	result := callRunCode(t, server, validArgs())
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"stdout":"1\n","ok":true}`, resultText(t, result))

	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Equal(t, "coderunner/node", call.ContainerConfig.Image())
	assert.Equal(t, 5*time.Second, call.Limits.MaxExecutionTime)
	assert.Equal(t, 4096, call.Limits.MaxOutputSize)
	assert.Equal(t, map[string]any{"code": "console.log(1)"}, call.Payload)
}

func TestRunCodeRunFailure(t *testing.T) {
	runner := &MockRunner{err: &sandbox.Error{
		Kind:  sandbox.ErrStart,
		State: sandbox.StateContainerCreated,
		Err:   errors.New("exec format error"),
	}}
	server, err := New(testConfig(), zaptest.NewLogger(t), runner)
	require.NoError(t, err)

	result := callRunCode(t, server, validArgs())
	assert.True(t, result.IsError)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &body))
	assert.Equal(t, "docker.container.start", body["error"])
	assert.Contains(t, body["message"], "exec format error")
}

func TestRunCodeInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		code string
	}{
		{"MissingImage", map[string]any{"limits": map[string]any{"maxExecutionTime": 1, "maxOutputSize": 1}, "payload": map[string]any{}}, "request.validate"},
		{"ZeroOutputSize", map[string]any{"image": "a", "limits": map[string]any{"maxExecutionTime": 1, "maxOutputSize": 0}, "payload": map[string]any{}}, "request.validate"},
		{"ExecutionTimeTooLarge", map[string]any{"image": "a", "limits": map[string]any{"maxExecutionTime": 86401, "maxOutputSize": 1}, "payload": map[string]any{}}, "request.validate"},
		{"PayloadString", map[string]any{"image": "a", "limits": map[string]any{"maxExecutionTime": 1, "maxOutputSize": 1}, "payload": "x"}, "request.parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockRunner{}
			server, err := New(testConfig(), zaptest.NewLogger(t), runner)
			require.NoError(t, err)

			result := callRunCode(t, server, tt.args)
			assert.True(t, result.IsError)

			var body map[string]string
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &body))
			assert.Equal(t, tt.code, body["error"])
			assert.Empty(t, runner.calls)
		})
	}
}
