package device

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// Identity is how the agent presents itself to the collector
type Identity struct {
	AgentID   string
	UserAgent string
}

// Resolver looks up host facts. The zero value uses the real host.
type Resolver struct {
	readFile func(string) ([]byte, error)
	hostname func() (string, error)
	command  func(name string, args ...string) ([]byte, error)
	goos     string
	goarch   string
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve fills missing identity fields. Configured values win.
func (r *Resolver) Resolve(agentID, userAgent, version string) Identity {
	if agentID == "" {
		agentID = r.AgentID()
	}
	if userAgent == "" {
		userAgent = r.UserAgent(version)
	}
	return Identity{AgentID: agentID, UserAgent: userAgent}
}

// AgentID returns the machine id, falling back to a random uuid
func (r *Resolver) AgentID() string {
	if id, err := r.machineID(); err == nil && id != "" {
		return id
	}
	return uuid.New().String()
}

// UserAgent returns "session-replay-agent/<version> (<os>; <arch>; <hostname>)"
func (r *Resolver) UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	host, err := r.hostnameFunc()()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("session-replay-agent/%s (%s; %s; %s)", version, r.platform(), r.machine(), host)
}

func (r *Resolver) machineID() (string, error) {
	switch r.platform() {
	case "linux":
		for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
			if data, err := r.readFileFunc()(path); err == nil {
				if id := strings.TrimSpace(string(data)); id != "" {
					return id, nil
				}
			}
		}
	case "darwin":
		out, err := r.commandFunc()("ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
		if err == nil {
			for _, line := range strings.Split(string(out), "\n") {
				if !strings.Contains(line, "IOPlatformUUID") {
					continue
				}
				if _, value, ok := strings.Cut(line, "="); ok {
					return strings.Trim(strings.TrimSpace(value), `"`), nil
				}
			}
		}
	case "windows":
		out, err := r.commandFunc()("reg", "query", `HKLM\SOFTWARE\Microsoft\Cryptography`, "/v", "MachineGuid")
		if err == nil {
			for _, line := range strings.Split(string(out), "\n") {
				fields := strings.Fields(line)
				if len(fields) == 3 && fields[0] == "MachineGuid" {
					return fields[2], nil
				}
			}
		}
	}
	return "", errors.New("machine id not available")
}

func (r *Resolver) platform() string {
	if r.goos != "" {
		return r.goos
	}
	return runtime.GOOS
}

func (r *Resolver) machine() string {
	if r.goarch != "" {
		return r.goarch
	}
	return runtime.GOARCH
}

func (r *Resolver) readFileFunc() func(string) ([]byte, error) {
	if r.readFile != nil {
		return r.readFile
	}
	return os.ReadFile
}

func (r *Resolver) hostnameFunc() func() (string, error) {
	if r.hostname != nil {
		return r.hostname
	}
	return os.Hostname
}

func (r *Resolver) commandFunc() func(string, ...string) ([]byte, error) {
	if r.command != nil {
		return r.command
	}
	return func(name string, args ...string) ([]byte, error) {
		return exec.Command(name, args...).Output()
	}
}
