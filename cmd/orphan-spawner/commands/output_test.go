//go:build unix

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"syscall"
	"testing"
	"time"

	"orphan-spawner/internal/config"
	"orphan-spawner/internal/spawner"
	"orphan-spawner/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setOutputFlags(t *testing.T, asJSON, async bool) {
	t.Helper()
	spawnJSON, spawnAsync = asJSON, async
	t.Cleanup(func() {
		spawnJSON, spawnAsync = false, false
	})
}

func decodeReport(t *testing.T, data []byte) models.SpawnReport {
	t.Helper()
	var report models.SpawnReport
	require.NoError(t, json.Unmarshal(data, &report))
	return report
}

func TestPrintOutcomeKeepsZeroValue(t *testing.T) {
	setOutputFlags(t, true, false)

	var out bytes.Buffer
	err := printOutcome(&out, spawner.Outcome{Kind: spawner.KindResolvedPid, Pid: 0}, 100)
	require.NoError(t, err)

	assert.Contains(t, out.String(), `"pid": 0`)
	report := decodeReport(t, out.Bytes())
	assert.Equal(t, "resolved", report.Outcome)
	assert.Equal(t, 100, report.IntermediatePid)
}

func TestPrintOutcomeFailure(t *testing.T) {
	tests := []struct {
		name   string
		asJSON bool
		want   string
	}{
		{name: "text", want: "failed: second fork failed: no such file or directory\n"},
		{name: "json", asJSON: true, want: `"errno": 2`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setOutputFlags(t, tt.asJSON, false)
			failure := spawner.NewFailure(fmt.Errorf("%w: %w", spawner.ErrSecondForkFailed, syscall.ENOENT))

			var out bytes.Buffer
			err := printOutcome(&out, failure, 100)
			require.ErrorIs(t, err, spawner.ErrSecondForkFailed)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestRunSpawnSynchronous(t *testing.T) {
	cfgManager = config.New()
	setOutputFlags(t, true, false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runSpawn(ctx, &out, spawner.Request{}))

	report := decodeReport(t, out.Bytes())
	assert.Equal(t, "resolved", report.Outcome)
	assert.Positive(t, report.Pid)
	assert.Positive(t, report.IntermediatePid)
}

func TestRunSpawnAsyncReturnsAfterIntermediate(t *testing.T) {
	cfgManager = config.New()
	setOutputFlags(t, false, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runSpawn(ctx, &out, spawner.Request{}))
	assert.Regexp(t, `^detached: intermediate \d+ exited\n$`, out.String())
}
