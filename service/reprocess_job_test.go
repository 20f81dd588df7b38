package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armario-estampados/models"
)

type fakeRegeneration struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]bool
}

func (f *fakeRegeneration) Regenerate(context.Context, models.RegenerationRequest, string) (*models.RegenerationResult, error) {
	return &models.RegenerationResult{}, nil
}

func (f *fakeRegeneration) RegenerateOrder(_ context.Context, orderID string, trigger string) (*models.RegenerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orderID+":"+trigger)
	if f.failFor[orderID] {
		return nil, errors.New("render failed")
	}
	return &models.RegenerationResult{}, nil
}

func (f *fakeRegeneration) GetFiles(context.Context, string) (*models.RegenerationResult, error) {
	return nil, nil
}

type countingSweeper struct{ n int }

func (c *countingSweeper) Sweep() int { c.n++; return 0 }

func TestReprocessJob_RunOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.pending = []string{"ord_1", "ord_2", "ord_3"}
	regen := &fakeRegeneration{failFor: map[string]bool{"ord_2": true}}

	job, err := NewReprocessJob(regen, repo, nil, "@every 1h", 2)
	require.NoError(t, err)

	report, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pending)
	assert.Equal(t, 1, report.Regenerated)
	assert.Equal(t, []string{"ord_2"}, report.Failed)
	assert.Equal(t, []string{"ord_1:reprocess", "ord_2:reprocess"}, regen.calls)
}

func TestReprocessJob_NothingPending(t *testing.T) {
	job, err := NewReprocessJob(&fakeRegeneration{}, newFakeRepo(), nil, "@every 1h", 0)
	require.NoError(t, err)

	report, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Pending)
	assert.Empty(t, report.Failed)
}

func TestReprocessJob_CancelledContext(t *testing.T) {
	repo := newFakeRepo()
	repo.pending = []string{"ord_1"}
	regen := &fakeRegeneration{}
	job, err := NewReprocessJob(regen, repo, nil, "@every 1h", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = job.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, regen.calls)
}

func TestReprocessJob_Schedule(t *testing.T) {
	_, err := NewReprocessJob(&fakeRegeneration{}, newFakeRepo(), nil, "not a schedule", 0)
	assert.Error(t, err)

	job, err := NewReprocessJob(&fakeRegeneration{}, newFakeRepo(), &countingSweeper{}, "*/5 * * * *", 0)
	require.NoError(t, err)
	assert.Len(t, job.cron.Entries(), 2)

	job.Start()
	job.Stop(context.Background())
}
