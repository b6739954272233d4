package system

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// ParseNvidiaSMI parses GPU identity from nvidia-smi CSV output.
// Expected input is from: nvidia-smi --query-gpu=name,driver_version --format=csv,noheader
//
// Returns nil, nil if no GPU is available (empty output or an error message).
// Only the first GPU is reported.
func ParseNvidiaSMI(output string) (*GPU, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, nil
	}

	lower := strings.ToLower(output)
	if strings.Contains(lower, "no devices") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "failed") ||
		strings.Contains(lower, "error") {
		return nil, nil
	}

	first, _, _ := strings.Cut(output, "\n")
	fields := strings.Split(first, ",")
	if len(fields) < 2 {
		return nil, fmt.Errorf("nvidia-smi output has insufficient fields: expected 2, got %d", len(fields))
	}

	gpu := &GPU{
		Name:   strings.TrimSpace(fields[0]),
		Driver: strings.TrimSpace(fields[1]),
	}
	if gpu.Driver == "[N/A]" {
		gpu.Driver = ""
	}
	return gpu, nil
}

// ParseLinuxCPUInfo extracts the processor model and logical core count
// from /proc/cpuinfo.
func ParseLinuxCPUInfo(procCPUInfo string) (model string, cores int) {
	scanner := bufio.NewScanner(strings.NewReader(procCPUInfo))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "processor":
			cores++
		case "model name", "Model", "cpu model":
			if model == "" {
				model = value
			}
		}
	}
	return model, cores
}

// ParseDarwinSysctl extracts the processor model and core count from
// `sysctl -n machdep.cpu.brand_string hw.logicalcpu` output.
func ParseDarwinSysctl(output string) (model string, cores int) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > 0 {
		model = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 {
		cores, _ = strconv.Atoi(strings.TrimSpace(lines[1]))
	}
	return model, cores
}

// ParseUname splits `uname -s -r -v` output into system, release and version.
func ParseUname(output string) Platform {
	fields := strings.Fields(strings.TrimSpace(output))
	var p Platform
	if len(fields) > 0 {
		p.System = fields[0]
	}
	if len(fields) > 1 {
		p.Release = fields[1]
	}
	if len(fields) > 2 {
		p.Version = strings.Join(fields[2:], " ")
	}
	return p
}
