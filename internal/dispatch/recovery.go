package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/freshpress-app/freshpress-backend/pkg/enums"
	"github.com/freshpress-app/freshpress-backend/pkg/errors"
)

// Recover rebuilds the in-memory reminder timers after a restart. Every
// non-terminal dispatch either gets its stage-appropriate timer re-armed or,
// when the order is gone or older than the expiry horizon, is moved to
// expired so stale orders never ping couriers days later.
func (s *service) Recover(ctx context.Context) error {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "listing active dispatches")
	}
	if len(active) == 0 {
		s.logg.Info(ctx, "no dispatches to recover")
		return nil
	}

	now := s.now()
	recovered, expired := 0, 0
	var errs error

	for _, row := range active {
		rctx := s.logg.WithOrderID(ctx, row.OrderID.String())

		if row.OrderCreatedAt == nil || now.Sub(*row.OrderCreatedAt) > s.expireAfter {
			if err := s.repo.Expire(rctx, row.OrderID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expiring dispatch %s: %w", row.OrderID, err))
				continue
			}
			if s.metrics != nil {
				s.metrics.IncExpired()
			}
			s.logg.Warn(rctx, "dispatch expired during recovery")
			expired++
			continue
		}

		switch row.Status {
		case enums.DispatchStatusPending, enums.DispatchStatusInProgress:
			s.armReminder(rctx, row.OrderID, row.Status)
			recovered++
		}
	}

	s.logg.Info(ctx, fmt.Sprintf("dispatch recovery done: %d re-armed, %d expired", recovered, expired))
	return errs
}
