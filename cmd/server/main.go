// Package main is the entry point for the docker-run server.
//
// The server runs untrusted code in single-use containers created through the
// Docker (or Podman) Engine API. It is served either as an HTTP API or as an
// MCP tool over stdio or HTTP.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/johnnyeric/docker-run/api"
	"github.com/johnnyeric/docker-run/config"
	"github.com/johnnyeric/docker-run/logger"
	"github.com/johnnyeric/docker-run/mcpserver"
	"github.com/johnnyeric/docker-run/sandbox"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,

			// Runner for the configured backend
			sandbox.NewRunner,

			mcpserver.New,
			api.New,
		),

		fx.Invoke(serve),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

// serve starts the configured transport. The HTTP API is bound to the fx
// lifecycle so it drains in-flight runs on shutdown.
func serve(lc fx.Lifecycle, cfg *config.Config, mcp *mcpserver.MCPServer, httpAPI *api.Server) {
	switch cfg.Server.Transport {
	case "api":
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return httpAPI.Start()
			},
			OnStop: func(ctx context.Context) error {
				return httpAPI.Shutdown(ctx)
			},
		})
	case "stdio":
		go func() {
			if err := mcp.ServeStdio(); err != nil {
				panic(err)
			}
		}()
	case "http":
		go func() {
			if err := mcp.ServeHTTP(); err != nil {
				panic(err)
			}
		}()
	default:
		panic("unsupported transport: " + cfg.Server.Transport)
	}
}
