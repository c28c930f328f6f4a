// ABOUTME: Holds a unit's single-flight lease for the length of a run
// ABOUTME: A heartbeat renews it and cancels the run once it is lost
package refine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// heldLease is one run's claim on a unit
type heldLease struct {
	svc    *Service
	unitID string
	holder string
	cancel context.CancelCauseFunc
	wg     sync.WaitGroup
}

// hold takes the unit's lease and returns a context that is cancelled with
// ErrLeaseLost if a renewal fails. The caller must call release.
func (s *Service) hold(ctx context.Context, unitID string) (context.Context, *heldLease, error) {
	holder := uuid.New().String()
	ok, err := s.leases.AcquireLease(ctx, unitID, holder, s.cfg.LeaseTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("unit %s: %w", unitID, ErrUnitBusy)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	l := &heldLease{svc: s, unitID: unitID, holder: holder, cancel: cancel}
	l.wg.Add(1)
	go l.heartbeat(runCtx)
	return runCtx, l, nil
}

func (l *heldLease) heartbeat(ctx context.Context) {
	defer l.wg.Done()
	ticker := time.NewTicker(max(l.svc.cfg.LeaseTTL/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.renew(ctx); err != nil {
				l.svc.logger.Error("lease lost, aborting run", zap.String("unit_id", l.unitID), zap.Error(err))
				l.cancel(err)
				return
			}
		}
	}
}

// renew extends the lease and fails with ErrLeaseLost when it is no longer ours
func (l *heldLease) renew(ctx context.Context) error {
	ok, err := l.svc.leases.RenewLease(context.WithoutCancel(ctx), l.unitID, l.holder, l.svc.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("unit %s: %w: %v", l.unitID, ErrLeaseLost, err)
	}
	if !ok {
		return fmt.Errorf("unit %s: %w", l.unitID, ErrLeaseLost)
	}
	return nil
}

// release stops the heartbeat and drops the lease if still held
func (l *heldLease) release(ctx context.Context) {
	l.cancel(nil)
	l.wg.Wait()
	if err := l.svc.leases.ReleaseLease(context.WithoutCancel(ctx), l.unitID, l.holder); err != nil {
		l.svc.logger.Warn("failed to release lease", zap.String("unit_id", l.unitID), zap.Error(err))
	}
}
