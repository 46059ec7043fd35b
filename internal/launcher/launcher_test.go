//go:build unix

package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"orphan-spawner/internal/constants"
	"orphan-spawner/internal/pipechan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlan(t *testing.T) {
	base := []string{
		"PATH=/system/bin",
		constants.StageEnv + "=" + constants.StageValue,
		"CLASSPATH=/stale.apk",
	}

	plan := NewPlan(PlanOptions{
		Image:    "/system/bin/app_process",
		NiceName: "zygote",
		Args:     []string{"/system/bin", "--nice-name=zygote", "com.example.Checker"},
		Fd:       3,
		EnvKey:   "CLASSPATH",
		EnvValue: "/data/app/base.apk",
	}, base)

	assert.Equal(t, "/system/bin/app_process", plan.Path)
	assert.Equal(t, []string{
		"zygote",
		"/system/bin",
		"--nice-name=zygote",
		"com.example.Checker",
		"--write-fd",
		"3",
	}, plan.Argv)
	assert.Equal(t, []string{"PATH=/system/bin", "CLASSPATH=/data/app/base.apk"}, plan.Env)
	assert.Equal(t, 3, plan.Fd)
}

func TestNewPlanDefaults(t *testing.T) {
	plan := NewPlan(PlanOptions{Image: "/usr/bin/true", FdFlag: "--fd", Fd: 7}, []string{"A=1"})

	assert.Equal(t, []string{"/usr/bin/true", "--fd", "7"}, plan.Argv)
	assert.Equal(t, []string{"A=1"}, plan.Env)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))
	plain := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"executable", script, false},
		{"not executable", plain, true},
		{"directory", dir, true},
		{"missing", filepath.Join(dir, "missing"), true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Plan{Path: tt.path}.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrImageReplacementFailed)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLaunchMakesDescriptorInheritable(t *testing.T) {
	ch, err := pipechan.Create()
	require.NoError(t, err)
	defer ch.Close()

	fd := int(ch.WriteEnd().Fd())
	plan := NewPlan(PlanOptions{Image: "/bin/sh", Fd: fd}, nil)

	var gotPath string
	var gotArgv []string
	err = Launch(plan, func(path string, argv []string, env []string) error {
		gotPath = path
		gotArgv = argv
		inheritable, err := pipechan.IsInheritable(fd)
		require.NoError(t, err)
		assert.True(t, inheritable)
		return errors.New("exec format error")
	})

	require.ErrorIs(t, err, ErrImageReplacementFailed)
	assert.Equal(t, "/bin/sh", gotPath)
	assert.Equal(t, "--write-fd", gotArgv[len(gotArgv)-2])
}

func TestLaunchRejectsMissingImage(t *testing.T) {
	called := false
	err := Launch(Plan{Path: "/nonexistent/orphan-spawner-image", Fd: 3}, func(string, []string, []string) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, ErrImageReplacementFailed)
	assert.False(t, called)
}
