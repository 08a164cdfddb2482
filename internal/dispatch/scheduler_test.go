package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshpress-app/freshpress-backend/pkg/enums"
)

func TestScheduler_TickUntilStopped(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	orderID := uuid.New()
	var ticks atomic.Int32

	s.Arm(orderID, enums.DispatchStatusPending, 5*time.Millisecond, func(context.Context, uuid.UUID, enums.DispatchStatus) bool {
		return ticks.Add(1) < 3
	})

	require.Eventually(t, func() bool {
		return ticks.Load() >= 3 && s.Active() == 0
	}, time.Second, 5*time.Millisecond, "timer should self-remove after the tick returns false")
	assert.EqualValues(t, 3, ticks.Load())
}

func TestScheduler_StopCancelsTimer(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	orderID := uuid.New()
	var ticks atomic.Int32
	s.Arm(orderID, enums.DispatchStatusPending, 5*time.Millisecond, func(context.Context, uuid.UUID, enums.DispatchStatus) bool {
		ticks.Add(1)
		return true
	})

	require.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, time.Millisecond)
	s.Stop(orderID)
	assert.Zero(t, s.Active())

	seen := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), seen+1, "stopped timer must not keep firing")
}

func TestScheduler_StopUnknownOrderIsNoop(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()
	s.Stop(uuid.New())
	assert.Zero(t, s.Active())
}

func TestScheduler_ArmWhileArmedIsNoop(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	orderID := uuid.New()
	var firstTicks, secondTicks atomic.Int32

	s.Arm(orderID, enums.DispatchStatusPending, 5*time.Millisecond, func(context.Context, uuid.UUID, enums.DispatchStatus) bool {
		firstTicks.Add(1)
		return true
	})
	s.Arm(orderID, enums.DispatchStatusInProgress, 5*time.Millisecond, func(context.Context, uuid.UUID, enums.DispatchStatus) bool {
		secondTicks.Add(1)
		return true
	})

	assert.Equal(t, 1, s.Active())
	stage, ok := s.Stage(orderID)
	require.True(t, ok)
	assert.Equal(t, enums.DispatchStatusPending, stage, "second arm must not displace the running timer")

	require.Eventually(t, func() bool { return firstTicks.Load() >= 2 }, time.Second, time.Millisecond)
	assert.Zero(t, secondTicks.Load(), "ignored arm must never tick")
}

func TestScheduler_StopThenArmSwitchesStage(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	orderID := uuid.New()
	var oldTicks, newTicks atomic.Int32

	s.Arm(orderID, enums.DispatchStatusPending, 5*time.Millisecond, func(context.Context, uuid.UUID, enums.DispatchStatus) bool {
		oldTicks.Add(1)
		return true
	})
	s.Stop(orderID)
	s.Arm(orderID, enums.DispatchStatusInProgress, 5*time.Millisecond, func(context.Context, uuid.UUID, enums.DispatchStatus) bool {
		newTicks.Add(1)
		return true
	})

	assert.Equal(t, 1, s.Active())
	stage, ok := s.Stage(orderID)
	require.True(t, ok)
	assert.Equal(t, enums.DispatchStatusInProgress, stage)

	require.Eventually(t, func() bool { return newTicks.Load() >= 2 }, time.Second, time.Millisecond)
	assert.LessOrEqual(t, oldTicks.Load(), int32(1), "stopped timer must not keep ticking")
}

func TestScheduler_ShutdownStopsEverything(t *testing.T) {
	s := NewScheduler()

	for i := 0; i < 5; i++ {
		s.Arm(uuid.New(), enums.DispatchStatusPending, time.Millisecond, func(context.Context, uuid.UUID, enums.DispatchStatus) bool {
			return true
		})
	}
	assert.Equal(t, 5, s.Active())

	s.Shutdown()
	assert.Zero(t, s.Active())
}

func TestScheduler_IgnoresInvalidArm(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	s.Arm(uuid.New(), enums.DispatchStatusPending, 0, func(context.Context, uuid.UUID, enums.DispatchStatus) bool { return true })
	s.Arm(uuid.New(), enums.DispatchStatusPending, time.Minute, nil)
	assert.Zero(t, s.Active())
}
