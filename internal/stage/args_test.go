package stage

import (
	"testing"
	"time"

	"orphan-spawner/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsRoundTrip(t *testing.T) {
	in := Args{
		Stage:      constants.StageGrandchild,
		WriteFd:    3,
		Image:      "/system/bin/app_process",
		EnvKey:     "CLASSPATH",
		EnvValue:   "/data/app/base.apk",
		NiceName:   "zygote",
		FdFlag:     "--write-fd",
		Extra:      []string{"/system/bin", "--nice-name=zygote", "com.example.Checker"},
		KillParent: true,
		TargetPid:  4321,
		Linger:     1500 * time.Millisecond,
	}

	out, err := ParseArgs(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseArgsMinimal(t *testing.T) {
	out, err := ParseArgs([]string{"--stage=intermediate", "--"})
	require.NoError(t, err)
	assert.Equal(t, constants.StageIntermediate, out.Stage)
	assert.Equal(t, constants.ResultFd, out.WriteFd)
	assert.Nil(t, out.Extra)
	assert.False(t, out.KillParent)
}

func TestParseArgsEmptyEnvValue(t *testing.T) {
	in := Args{Stage: constants.StageGrandchild, WriteFd: 3, EnvKey: "PAYLOAD"}

	out, err := ParseArgs(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, "PAYLOAD", out.EnvKey)
	assert.Equal(t, "", out.EnvValue)
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{"no stage", []string{"--write-fd=3"}},
		{"unknown stage", []string{"--stage=worker"}},
		{"unknown flag", []string{"--stage=grandchild", "--bogus"}},
		{"stray positional", []string{"--stage=grandchild", "extra"}},
		{"positional before dash", []string{"--stage=grandchild", "extra", "--", "x"}},
		{"negative fd", []string{"--stage=grandchild", "--write-fd=-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.argv)
			assert.Error(t, err)
		})
	}
}
