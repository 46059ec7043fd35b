package utils

import (
	"errors"
	"os"
	"strings"
	"syscall"
)

// IsPIDAlive returns true if the process with the given PID exists.
// Uses signal 0 which checks existence without delivering a signal.
func IsPIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	// EPERM means the process exists but belongs to someone else
	return err == nil || errors.Is(err, syscall.EPERM)
}

// WithoutEnv returns a copy of env without any definition of key
func WithoutEnv(env []string, key string) []string {
	prefix := key + "="
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// SetEnv returns a copy of env where key is defined exactly once, as value
func SetEnv(env []string, key, value string) []string {
	out := WithoutEnv(env, key)
	return append(out, key+"="+value)
}

// ParseEnvPair splits a KEY=VALUE string. The value may be empty or contain '='.
func ParseEnvPair(s string) (string, string, bool) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" || strings.ContainsAny(key, " \t\n") {
		return "", "", false
	}
	return key, value, true
}
