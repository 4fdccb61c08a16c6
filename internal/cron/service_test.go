package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
	"github.com/angelmondragon/wacommerce-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name     string
	affected int64
	err      error
	runs     int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) (int64, error) {
	c.runs++
	return c.affected, c.err
}

func newTestService(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &countingJob{name: "ok", affected: 3}
	bad := &countingJob{name: "bad", err: errors.New("boom")}
	last := &countingJob{name: "last"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, prometheus.NewRegistry(), ok, bad, last)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, bad.runs)
	assert.Equal(t, 1, last.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "job"}
	lock := &fakeLock{held: true}
	svc := newTestService(t, lock, nil, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

func TestRunOnceRecordsAffectedRows(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := &countingJob{name: "stale-carts", affected: 4}
	svc := newTestService(t, &fakeLock{}, reg, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.NoError(t, svc.RunOnce(context.Background()))

	expected := `
# HELP wacommerce_cron_job_rows_affected_total Rows deleted or reset by cron jobs.
# TYPE wacommerce_cron_job_rows_affected_total counter
wacommerce_cron_job_rows_affected_total{job="stale-carts"} 8
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wacommerce_cron_job_rows_affected_total"))
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "job"}
	svc := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs)
}

type fakePurger struct {
	before time.Time
}

func (f *fakePurger) PurgeStale(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 2, nil
}

type fakeResetter struct {
	steps  []enums.ConversationStep
	before time.Time
}

func (f *fakeResetter) ResetStale(_ context.Context, steps []enums.ConversationStep, before time.Time) (int64, error) {
	f.steps = steps
	f.before = before
	return 5, nil
}

func TestStaleCartJobCutoff(t *testing.T) {
	now := time.Date(2030, 3, 15, 12, 0, 0, 0, time.UTC)
	purger := &fakePurger{}
	job, err := NewStaleCartJob(purger, 14)
	require.NoError(t, err)
	job.now = func() time.Time { return now }

	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, now.Add(-14*24*time.Hour), purger.before)
}

func TestStaleConversationJobLeavesHandoffs(t *testing.T) {
	now := time.Date(2030, 3, 15, 12, 0, 0, 0, time.UTC)
	resetter := &fakeResetter{}
	job, err := NewStaleConversationJob(resetter, 48)
	require.NoError(t, err)
	job.now = func() time.Time { return now }

	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.Equal(t, now.Add(-48*time.Hour), resetter.before)
	assert.NotContains(t, resetter.steps, enums.ConversationStepNeedsHuman)
	assert.Contains(t, resetter.steps, enums.ConversationStepAskingInfo)
}

func TestJobConstructorsValidate(t *testing.T) {
	_, err := NewStaleCartJob(nil, 14)
	assert.Error(t, err)
	_, err = NewStaleCartJob(&fakePurger{}, 0)
	assert.Error(t, err)
	_, err = NewStaleConversationJob(&fakeResetter{}, -1)
	assert.Error(t, err)
}
