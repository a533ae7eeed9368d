// Package logger provides structured logging capabilities.
//
// The logger package configures zap for the service, in either a
// human-friendly development mode or a JSON production mode, and defines the
// field keys used on every entry about a run.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	runLog := logger.ForRun(logger, "docker-run-1f0c", "coderunner/python")
//	runLog.Info("run completed", zap.Duration("elapsed", elapsed))
package logger
