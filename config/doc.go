// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and DOCKER_RUN_* environment variables. It
// covers the serving transport, the container daemon socket, container
// creation defaults, and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Daemon socket: %s\n", cfg.Docker.Socket)
package config
