package checker

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStatus(t *testing.T, tracer string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "status")
	content := "Name:\tzygote\nPid:\t4242\nPPid:\t1\nTracerPid:\t" + tracer + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunReportsTracer(t *testing.T) {
	watched := filepath.Join(t.TempDir(), "app_process")
	require.NoError(t, os.WriteFile(watched, []byte("\x7fELF"), 0o755))

	var out bytes.Buffer
	tracer, err := New(logrus.New()).Run(context.Background(), Options{
		TouchPath:  watched,
		StatusPath: writeStatus(t, "812"),
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, 812, tracer)
	assert.Equal(t, "812", out.String())
}

func TestRunUntraced(t *testing.T) {
	var out bytes.Buffer
	tracer, err := New(logrus.New()).Run(context.Background(), Options{
		StatusPath: writeStatus(t, "0"),
	}, &out)

	require.NoError(t, err)
	assert.Zero(t, tracer)
	assert.Equal(t, "0", out.String())
}

func TestRunToleratesMissingTouchPath(t *testing.T) {
	var out bytes.Buffer
	_, err := New(logrus.New()).Run(context.Background(), Options{
		TouchPath:  filepath.Join(t.TempDir(), "missing"),
		StatusPath: writeStatus(t, "5"),
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "5", out.String())
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err := New(logrus.New()).Run(ctx, Options{
		Settle:     time.Minute,
		StatusPath: writeStatus(t, "5"),
	}, &out)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String(), "nothing may be written when the check did not finish")
}

func TestRunSelfStatus(t *testing.T) {
	if _, err := os.Stat("/proc/self/status"); err != nil {
		t.Skip("procfs not available")
	}
	var out bytes.Buffer
	_, err := New(logrus.New()).Run(context.Background(), Options{}, &out)
	require.NoError(t, err)
	assert.NotEmpty(t, out.String())
}
