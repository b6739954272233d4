// Package system collects a description of the machine a run executes on.
//
// The result is attached to runs as their "system" field. Every probe is
// best effort: a missing tool or unreadable file leaves its fields empty
// instead of failing the run.
package system

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// probeTimeout bounds each external command.
const probeTimeout = 2 * time.Second

// Platform describes the operating system.
type Platform struct {
	System  string `json:"system"`
	Release string `json:"release"`
	Version string `json:"version"`
}

// CPU describes the processor.
type CPU struct {
	Arch      string `json:"arch"`
	Processor string `json:"processor"`
	Cores     int    `json:"cores"`
}

// GPU describes the first NVIDIA GPU, when present.
type GPU struct {
	Name   string `json:"name"`
	Driver string `json:"driver"`
}

// Info is everything Collect found.
type Info struct {
	Hostname string
	CWD      string
	Platform Platform
	CPU      CPU
	GPU      *GPU
}

// CommandRunner runs a command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) (string, error)

// Collector gathers Info. Its fields are swappable for tests.
type Collector struct {
	Run      CommandRunner
	ReadFile func(path string) ([]byte, error)
	GOOS     string
	GOARCH   string
}

// NewCollector returns a collector for the current machine.
func NewCollector() *Collector {
	return &Collector{
		Run:      execRunner,
		ReadFile: os.ReadFile,
		GOOS:     runtime.GOOS,
		GOARCH:   runtime.GOARCH,
	}
}

// Collect runs every probe and returns what it found.
func Collect(ctx context.Context) Info {
	return NewCollector().Collect(ctx)
}

// Collect runs every probe and returns what it found.
func (c *Collector) Collect(ctx context.Context) Info {
	info := Info{
		Platform: Platform{System: c.GOOS},
		CPU:      CPU{Arch: c.GOARCH},
	}
	info.Hostname, _ = os.Hostname()
	info.CWD, _ = os.Getwd()

	if out, err := c.run(ctx, "uname", "-s", "-r", "-v"); err == nil {
		if p := ParseUname(out); p.System != "" {
			info.Platform = p
		}
	}

	switch c.GOOS {
	case "linux":
		if data, err := c.ReadFile("/proc/cpuinfo"); err == nil {
			info.CPU.Processor, info.CPU.Cores = ParseLinuxCPUInfo(string(data))
		}
	case "darwin":
		if out, err := c.run(ctx, "sysctl", "-n", "machdep.cpu.brand_string", "hw.logicalcpu"); err == nil {
			info.CPU.Processor, info.CPU.Cores = ParseDarwinSysctl(out)
		}
	}
	if info.CPU.Cores == 0 {
		info.CPU.Cores = runtime.NumCPU()
	}

	if out, err := c.run(ctx, "nvidia-smi", "--query-gpu=name,driver_version", "--format=csv,noheader"); err == nil {
		if gpu, err := ParseNvidiaSMI(out); err == nil {
			info.GPU = gpu
		}
	}

	return info
}

func (c *Collector) run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return c.Run(ctx, name, args...)
}

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

// Map renders Info in the layout the server stores under a run's "system" key.
func (i Info) Map() map[string]any {
	m := map[string]any{
		"hostname": i.Hostname,
		"cwd":      i.CWD,
		"platform": map[string]any{
			"system":  i.Platform.System,
			"release": i.Platform.Release,
			"version": i.Platform.Version,
		},
		"cpu": map[string]any{
			"arch":      i.CPU.Arch,
			"processor": i.CPU.Processor,
			"cores":     i.CPU.Cores,
		},
	}
	if i.GPU != nil {
		m["gpu"] = map[string]any{
			"name":   i.GPU.Name,
			"driver": i.GPU.Driver,
		}
	}
	return m
}

// Summary is a one-line description used in verbose output.
func (i Info) Summary() string {
	parts := []string{i.Platform.System + "/" + i.CPU.Arch}
	if i.CPU.Processor != "" {
		parts = append(parts, i.CPU.Processor)
	}
	if i.GPU != nil && i.GPU.Name != "" {
		parts = append(parts, i.GPU.Name)
	}
	return strings.Join(parts, ", ")
}
