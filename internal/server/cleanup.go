package server

import (
	"context"
	"log/slog"
	"time"
)

// CleanupInterval is how often finished tasks are swept.
const CleanupInterval = 10 * time.Minute

// RunCleanup periodically drops finished tasks older than the configured
// retention. It returns when ctx is done.
func (s *Server) RunCleanup(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = CleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Task cleanup worker started", "interval", interval, "retention", s.cfg.Server.JobRetention)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.cleanupFinished()
		}
	}
}

func (s *Server) cleanupFinished() {
	removed := s.jobs.RemoveFinished(s.cfg.Server.JobRetention)
	if removed > 0 {
		slog.Info("Cleanup completed", "tasks_removed", removed)
	}
}
