package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type sessionJanitor interface {
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type promoJanitor interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type purchaseJanitor interface {
	DeactivateExpiredPurchases(ctx context.Context, now time.Time) (int64, error)
}

type reportFileJanitor interface {
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// MaintenanceService runs periodic housekeeping: purging idle sessions,
// deactivating expired promo codes and course purchases, and removing stale
// report files. All steps are idempotent, so overlapping restarts are safe.
type MaintenanceService struct {
	sessions  sessionJanitor
	promos    promoJanitor
	purchases purchaseJanitor
	files     reportFileJanitor

	interval       time.Duration
	sessionIdleTTL time.Duration
	fileTTL        time.Duration
	logger         *zap.Logger
}

// NewMaintenanceService constructs a MaintenanceService. The files janitor
// may be nil when report generation is disabled.
func NewMaintenanceService(sessions sessionJanitor, promos promoJanitor, purchases purchaseJanitor, files reportFileJanitor, interval, sessionIdleTTL, fileTTL time.Duration, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if sessionIdleTTL <= 0 {
		sessionIdleTTL = 72 * time.Hour
	}
	if fileTTL <= 0 {
		fileTTL = 7 * 24 * time.Hour
	}
	return &MaintenanceService{
		sessions:       sessions,
		promos:         promos,
		purchases:      purchases,
		files:          files,
		interval:       interval,
		sessionIdleTTL: sessionIdleTTL,
		fileTTL:        fileTTL,
		logger:         logger,
	}
}

// Run blocks, executing one sweep per interval until the context is done.
func (s *MaintenanceService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("maintenance worker started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance worker stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single housekeeping sweep. Failures are logged and do
// not abort the remaining steps.
func (s *MaintenanceService) RunOnce(ctx context.Context) {
	now := time.Now().UTC()

	if s.sessions != nil {
		cutoff := now.Add(-s.sessionIdleTTL)
		if purged, err := s.sessions.DeleteIdleBefore(ctx, cutoff); err != nil {
			s.logger.Warn("failed to purge idle sessions", zap.Error(err))
		} else if purged > 0 {
			s.logger.Info("purged idle sessions", zap.Int64("count", purged))
		}
	}

	if s.promos != nil {
		if deactivated, err := s.promos.DeactivateExpired(ctx, now); err != nil {
			s.logger.Warn("failed to deactivate expired promos", zap.Error(err))
		} else if deactivated > 0 {
			s.logger.Info("deactivated expired promos", zap.Int64("count", deactivated))
		}
	}

	if s.purchases != nil {
		if deactivated, err := s.purchases.DeactivateExpiredPurchases(ctx, now); err != nil {
			s.logger.Warn("failed to deactivate expired purchases", zap.Error(err))
		} else if deactivated > 0 {
			s.logger.Info("deactivated expired purchases", zap.Int64("count", deactivated))
		}
	}

	if s.files != nil {
		if deleted, err := s.files.CleanupOlderThan(s.fileTTL); err != nil {
			s.logger.Warn("failed to clean report files", zap.Error(err))
		} else if len(deleted) > 0 {
			s.logger.Info("removed stale report files", zap.Int("count", len(deleted)))
		}
	}
}
