// Package daemon talks to the container runtime daemon.
//
// It opens one Engine API session per run over the daemon's unix socket,
// creates, starts and attaches to a container, and decodes the attached
// stream's multiplexed framing:
//
//	[type:1][0:3][length:4 big-endian][payload:length] ...
//
// Usage:
//
//	conn, err := daemon.NewDialer(logger, "/var/run/docker.sock", "1.41").Connect(ctx)
//	id, err := conn.CreateContainer(ctx, daemon.DefaultContainerConfig("alpine", defaults), name)
//	...
//	out, err := daemon.Demultiplex(ctx, stream.Reader(), maxOutputSize, daemon.NewDeadline(limit))
package daemon
