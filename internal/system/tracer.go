package system

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SelfStatusPath is the status file of the calling process
const SelfStatusPath = "/proc/self/status"

const tracerPidField = "TracerPid:"

// TracerPid returns the pid of the process tracing the owner of statusPath,
// or 0 when nobody is tracing it.
func TracerPid(statusPath string) (int, error) {
	f, err := os.Open(statusPath)
	if err != nil {
		return 0, fmt.Errorf("error opening %s: %w", statusPath, err)
	}
	defer f.Close()
	return ParseTracerPid(f)
}

// ParseTracerPid extracts the TracerPid field from a /proc/<pid>/status stream
func ParseTracerPid(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, tracerPidField) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, tracerPidField))
		pid, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("error parsing tracer pid %q: %w", value, err)
		}
		return pid, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading status: %w", err)
	}
	// kernels without the field cannot report a tracer
	return 0, nil
}
