package reservation

import (
	"context"

	"go.uber.org/zap"
)

// Sweep reclaims every hold past its expiry. The associated checkout session
// is expired best-effort before the row goes; a session expire failure is
// logged and the sweep moves on. The delete itself re-checks expiry, so a
// hold confirmed by a race-winning webhook between select and delete is left
// alone.
func (s *DefaultService) Sweep(ctx context.Context) (int, error) {
	now := s.Clock.Now()
	expired, err := s.Holds.FindExpired(ctx, now)
	if err != nil {
		return 0, &UpstreamError{Op: "sweep select", Err: err}
	}

	released := 0
	for i := range expired {
		hold := expired[i]

		if hold.SessionID != "" {
			if err := s.Gateway.ExpireSession(ctx, hold.SessionID); err != nil {
				s.Logger.Warn("sweep: session expire failed, continuing",
					zap.String("holdID", hold.ID),
					zap.String("sessionID", hold.SessionID),
					zap.Error(err))
			}
		}

		deleted, err := s.Holds.DeleteIfExpired(ctx, hold.ID, now)
		if err != nil {
			s.Logger.Error("sweep: conditional delete failed",
				zap.String("holdID", hold.ID), zap.Error(err))
			continue
		}
		if deleted {
			released++
			s.Logger.Info("sweep: released expired hold",
				zap.String("holdID", hold.ID),
				zap.String("resourceID", hold.ResourceID))
		}
	}

	return released, nil
}
