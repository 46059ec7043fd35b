//go:build unix

package commands

import (
	"os"
	"testing"
	"time"

	"orphan-spawner/internal/config"
	"orphan-spawner/internal/constants"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpawnCmd(t *testing.T, args ...string) *cobra.Command {
	return parseFlags(t, spawnCmd, args...)
}

func TestBuildRequestUsesConfig(t *testing.T) {
	cfgManager = config.New()
	cfg := cfgManager.GetConfig()
	cfg.Image = "/system/bin/app_process"
	cfg.EnvValue = "/data/app/checker.apk"
	cfg.KillParent = true

	req, err := buildRequest(newSpawnCmd(t), []string{"/system/bin", "com.example.Main"})
	require.NoError(t, err)

	assert.Equal(t, "/system/bin/app_process", req.Image)
	assert.Equal(t, constants.DefaultEnvKey, req.EnvKey)
	assert.Equal(t, "/data/app/checker.apk", req.EnvValue)
	assert.Equal(t, constants.DefaultNiceName, req.NiceName)
	assert.Equal(t, constants.DefaultFdFlag, req.FdFlag)
	assert.True(t, req.KillParent)
	assert.Equal(t, []string{"/system/bin", "com.example.Main"}, req.Args)
}

func TestBuildRequestFlagsOverrideConfig(t *testing.T) {
	cfgManager = config.New()

	cmd := newSpawnCmd(t,
		"--image", "/bin/true",
		"--env", "PAYLOAD=/tmp/x",
		"--nice-name", "system_server",
		"--linger", "2s",
	)
	req, err := buildRequest(cmd, nil)
	require.NoError(t, err)

	assert.Equal(t, "/bin/true", req.Image)
	assert.Equal(t, "PAYLOAD", req.EnvKey)
	assert.Equal(t, "/tmp/x", req.EnvValue)
	assert.Equal(t, "system_server", req.NiceName)
	assert.Equal(t, 2*time.Second, req.Linger)
}

func TestBuildRequestDropsEmptyPayload(t *testing.T) {
	cfgManager = config.New()

	req, err := buildRequest(newSpawnCmd(t), nil)
	require.NoError(t, err)
	assert.Empty(t, req.EnvKey)
}

func TestBuildRequestRejectsBadEnv(t *testing.T) {
	cfgManager = config.New()

	_, err := buildRequest(newSpawnCmd(t, "--env", "=value"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want KEY=VALUE")
}

func TestBuildRequestSelfChecker(t *testing.T) {
	cfgManager = config.New()
	cfgManager.SetConfigFile("/tmp/orphan-spawner.yml")

	req, err := buildRequest(newSpawnCmd(t, "--self-checker", "--nice-name", "zygote64"), []string{"ignored"})
	require.NoError(t, err)

	exe, err := os.Executable()
	require.NoError(t, err)
	assert.Equal(t, exe, req.Image)
	assert.Equal(t, constants.DefaultFdFlag, req.FdFlag)
	assert.Equal(t, []string{
		"checker",
		"--config", "/tmp/orphan-spawner.yml",
		"--touch", "/system/bin/app_process",
		"--settle", "2s",
		"--nice-name", "zygote64",
	}, req.Args)
}
