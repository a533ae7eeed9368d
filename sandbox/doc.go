// Package sandbox runs untrusted code in single-use containers.
//
// A run connects to the container daemon, creates, starts and attaches to a
// fresh container, writes the JSON payload to its stdin, and drains its
// multiplexed output under an execution deadline and an output-size ceiling.
// The stdout bytes are decoded as the run's JSON result. Every failure is a
// *Error carrying a stable code such as "docker.container.create" or
// "limits.execution_time".
//
// Usage:
//
//	runner, err := sandbox.NewRunner(logger, cfg)
//	result, err := runner.Run(ctx, sandbox.RunRequest{
//	    ContainerConfig: daemon.DefaultContainerConfig("coderunner/python", defaults),
//	    Payload:         map[string]any{"code": "print(1)"},
//	    Limits:          sandbox.Limits{MaxExecutionTime: 10 * time.Second, MaxOutputSize: 1 << 20},
//	})
package sandbox
