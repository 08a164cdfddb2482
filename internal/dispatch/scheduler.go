package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freshpress-app/freshpress-backend/pkg/enums"
)

// TickFunc runs on every reminder tick. Returning false removes the timer;
// returning true keeps it running at the same interval.
type TickFunc func(ctx context.Context, orderID uuid.UUID, stage enums.DispatchStatus) bool

// Scheduler owns one in-memory reminder timer per order. Timers do not survive
// a restart; Recover re-arms them from the database.
type Scheduler struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*reminderTimer
	wg     sync.WaitGroup
}

type reminderTimer struct {
	stage  enums.DispatchStatus
	cancel context.CancelFunc
}

// NewScheduler builds an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[uuid.UUID]*reminderTimer)}
}

// Arm starts a reminder timer for the order. Arming an order that already has
// a timer is a no-op; stage transitions Stop the old timer explicitly before
// re-arming. The tick function fires every interval until it returns false or
// the scheduler shuts down.
func (s *Scheduler) Arm(orderID uuid.UUID, stage enums.DispatchStatus, interval time.Duration, tick TickFunc) {
	if interval <= 0 || tick == nil {
		return
	}

	s.mu.Lock()
	if _, ok := s.timers[orderID]; ok {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.timers[orderID] = &reminderTimer{stage: stage, cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, orderID, stage, interval, tick)
}

// Stop cancels the order's timer if one exists.
func (s *Scheduler) Stop(orderID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[orderID]; ok {
		timer.cancel()
		delete(s.timers, orderID)
	}
}

// Stage returns the stage the order's active timer was armed for.
func (s *Scheduler) Stage(orderID uuid.UUID) (enums.DispatchStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.timers[orderID]
	if !ok {
		return "", false
	}
	return timer.stage, true
}

// Active returns the number of armed timers.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown cancels every timer and waits for their goroutines to exit.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for orderID, timer := range s.timers {
		timer.cancel()
		delete(s.timers, orderID)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, orderID uuid.UUID, stage enums.DispatchStatus, interval time.Duration, tick TickFunc) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !tick(ctx, orderID, stage) {
				s.removeIfCurrent(orderID, ctx)
				return
			}
		}
	}
}

// removeIfCurrent deletes the map entry only when it still belongs to this
// goroutine's context, so a timer re-armed mid-tick is left alone.
func (s *Scheduler) removeIfCurrent(orderID uuid.UUID, ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.timers[orderID]
	if !ok {
		return
	}
	// Cancelling is a no-op for our own context and protects against racing a
	// replacement that was armed after our tick returned false.
	select {
	case <-ctx.Done():
		return
	default:
	}
	timer.cancel()
	delete(s.timers, orderID)
}
