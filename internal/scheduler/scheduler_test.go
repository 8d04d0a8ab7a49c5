package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	calls     int
	retention uint64
	pruned    int64
	err       error
}

func (f *fakePruner) Prune(_ context.Context, retention uint64) (int64, error) {
	f.calls++
	f.retention = retention
	return f.pruned, f.err
}

func TestRegisterAllRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background(), &fakePruner{}, 10)
	assert.Error(t, s.RegisterAll("every now and then"))
	// Five-field specs are rejected, the parser expects seconds.
	assert.Error(t, s.RegisterAll("*/5 * * * *"))
	require.NoError(t, s.RegisterAll("0 */5 * * * *"))
	assert.Len(t, s.Cron.Entries(), 1)
}

func TestRegisterAllNeedsPruner(t *testing.T) {
	s := NewScheduler(context.Background(), nil, 10)
	assert.Error(t, s.RegisterAll("0 */5 * * * *"))
}

func TestRunPruneNow(t *testing.T) {
	p := &fakePruner{pruned: 4}
	s := NewScheduler(context.Background(), p, 256)
	var reported int64
	s.OnPruned = func(n int64) { reported = n }

	s.RunPruneNow()
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, uint64(256), p.retention)
	assert.Equal(t, int64(4), reported)

	p.err = errors.New("db down")
	reported = 0
	s.RunPruneNow()
	assert.Equal(t, 2, p.calls)
	assert.Zero(t, reported)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(context.Background(), &fakePruner{}, 1)
	require.NoError(t, s.RegisterAll("0 0 0 1 1 *"))
	s.Start()
	s.Stop()
}
