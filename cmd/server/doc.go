// Command server runs the docker-run service.
//
// Configuration is read from config.yaml in the working directory or ./config,
// and every key can be overridden with a DOCKER_RUN_ environment variable,
// e.g. DOCKER_RUN_DOCKER_SOCKET=/run/user/1000/docker.sock.
package main
