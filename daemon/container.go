package daemon

import (
	"github.com/docker/docker/api/types/container"
)

// ContainerConfig is the creation payload for one sandbox container.
type ContainerConfig struct {
	Config     *container.Config
	HostConfig *container.HostConfig
}

// Image returns the configured image name, or "" if unset.
func (c ContainerConfig) Image() string {
	if c.Config == nil {
		return ""
	}
	return c.Config.Image
}

// Defaults are the isolation settings applied to every sandbox container.
type Defaults struct {
	Memory          int64
	PidsLimit       int64
	NetworkDisabled bool
	ReadonlyRootfs  bool
	User            string
}

// sandboxTmpfs is mounted writable when the root filesystem is read-only.
const sandboxTmpfs = "rw,noexec,nosuid,size=64m"

// DefaultContainerConfig builds creation parameters for image: stdin held open
// for exactly one attach, no TTY so the output stays multiplexed, all
// capabilities dropped.
func DefaultContainerConfig(image string, d Defaults) ContainerConfig {
	cfg := &container.Config{
		Image:           image,
		User:            d.User,
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		OpenStdin:       true,
		StdinOnce:       true,
		Tty:             false,
		NetworkDisabled: d.NetworkDisabled,
	}

	host := &container.HostConfig{
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		ReadonlyRootfs: d.ReadonlyRootfs,
	}

	if d.Memory > 0 {
		host.Resources.Memory = d.Memory
		host.Resources.MemorySwap = d.Memory
	}
	if d.PidsLimit > 0 {
		pids := d.PidsLimit
		host.Resources.PidsLimit = &pids
	}
	if d.NetworkDisabled {
		host.NetworkMode = container.NetworkMode("none")
	}
	if d.ReadonlyRootfs {
		host.Tmpfs = map[string]string{"/tmp": sandboxTmpfs}
	}

	return ContainerConfig{Config: cfg, HostConfig: host}
}
