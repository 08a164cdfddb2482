package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshpress-app/freshpress-backend/pkg/logger"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

type fakeLock struct {
	locked   atomic.Bool
	acquires atomic.Int32
	releases atomic.Int32
	err      error
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	l.acquires.Add(1)
	if l.err != nil {
		return false, l.err
	}
	return !l.locked.Load(), nil
}

func (l *fakeLock) Release(context.Context) error {
	l.releases.Add(1)
	return nil
}

func sweepService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Interval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return svc
}

func TestService_RunsJobsImmediatelyAndOnTicks(t *testing.T) {
	job := &countingJob{name: "job_a"}
	lock := &fakeLock{}
	svc := sweepService(t, lock, job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 },
		time.Second, time.Millisecond, "first cycle is immediate, second on the ticker")
	cancel()
	<-done

	assert.Equal(t, lock.acquires.Load(), lock.releases.Load(),
		"every acquired lock must be released")
}

func TestService_SkipsCycleWhenLockHeldElsewhere(t *testing.T) {
	job := &countingJob{name: "job_a"}
	lock := &fakeLock{}
	lock.locked.Store(true)
	svc := sweepService(t, lock, job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return lock.acquires.Load() >= 2 },
		time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Zero(t, job.runs.Load(), "jobs must not run without the lock")
	assert.Zero(t, lock.releases.Load(), "nothing to release when acquire lost")
}

func TestService_JobFailureDoesNotStopOthers(t *testing.T) {
	failing := &countingJob{name: "job_bad", err: errors.New("boom")}
	healthy := &countingJob{name: "job_good"}
	svc := sweepService(t, &fakeLock{}, failing, healthy)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.EqualValues(t, 1, failing.runs.Load())
	assert.EqualValues(t, 1, healthy.runs.Load())
}

func TestService_LockErrorSurfacesFromCycle(t *testing.T) {
	lock := &fakeLock{err: errors.New("redis down")}
	svc := sweepService(t, lock, &countingJob{name: "job_a"})

	require.Error(t, svc.runCycle(context.Background()))
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	require.Error(t, err, "logger required")

	_, err = NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "test"})})
	require.Error(t, err, "lock required")
}

func TestDispatchReconcileJob_DelegatesToRecoverer(t *testing.T) {
	var calls atomic.Int32
	job, err := NewDispatchReconcileJob(recovererFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, err)

	assert.Equal(t, "dispatch_reconcile", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.EqualValues(t, 1, calls.Load())

	_, err = NewDispatchReconcileJob(nil)
	require.Error(t, err)
}

type recovererFunc func(ctx context.Context) error

func (f recovererFunc) Recover(ctx context.Context) error { return f(ctx) }

func TestRegistry_KeepsOrderAndSkipsNil(t *testing.T) {
	a := &countingJob{name: "a"}
	b := &countingJob{name: "b"}

	registry := NewRegistry(a, nil)
	registry.Register(b)
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name())
	assert.Equal(t, "b", jobs[1].Name())
}
