package system

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusFixture = `Name:	zygote
Umask:	0022
State:	S (sleeping)
Tgid:	4242
Ngid:	0
Pid:	4242
PPid:	1
TracerPid:	1337
Uid:	10123	10123	10123	10123
`

func TestParseTracerPid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"traced", statusFixture, 1337, false},
		{"not traced", strings.Replace(statusFixture, "1337", "0", 1), 0, false},
		{"field missing", "Name:\tinit\nPid:\t1\n", 0, false},
		{"garbage", "TracerPid:\tabc\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTracerPid(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTracerPidFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status")
	require.NoError(t, os.WriteFile(path, []byte(statusFixture), 0o600))

	got, err := TracerPid(path)
	require.NoError(t, err)
	assert.Equal(t, 1337, got)

	_, err = TracerPid(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLineageOfSelf(t *testing.T) {
	d := NewDetector(logrus.New())

	l, err := d.Lineage(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), l.Pid)
	assert.Equal(t, os.Getppid(), l.Ppid)
	assert.NotEmpty(t, l.Name)
}

func TestWaitGone(t *testing.T) {
	cmd := exec.Command("sleep", "0.1")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := NewDetector(logrus.New())
	require.NoError(t, d.WaitGone(ctx, pid))
}

func TestWaitReparentedHonorsContext(t *testing.T) {
	d := NewDetector(logrus.New())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// this test process never changes parent
	_, err := d.WaitReparented(ctx, os.Getpid(), os.Getppid())
	assert.Error(t, err)
}

func TestSetProcessName(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("process names are only settable on linux")
	}
	// rename ourselves and read it back, then restore
	orig, err := os.ReadFile("/proc/self/comm")
	require.NoError(t, err)
	defer func() { _ = SetProcessName(strings.TrimSpace(string(orig))) }()

	require.NoError(t, SetProcessName("zygote-with-a-long-suffix"))
	got, err := os.ReadFile("/proc/self/comm")
	require.NoError(t, err)
	assert.Equal(t, "zygote-with-a-l", strings.TrimSpace(string(got)))
}
