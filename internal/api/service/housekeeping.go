package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/geofleet/geofleet/internal/api/store"
)

const (
	DefaultHousekeepingInterval = time.Hour
	DefaultAuditRetention       = 90 * 24 * time.Hour
)

// HousekeepingService periodically removes expired sessions and audit
// events older than the retention window.
type HousekeepingService struct {
	store     store.Store
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	return &HousekeepingService{
		store:     st,
		logger:    logger,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background cleanup worker.
func (s *HousekeepingService) Start() {
	go s.run()
}

// Stop gracefully shuts down the background worker.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cleanup()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs the individual sweeps, logging each failure independently so
// one failing sweep does not block the others.
func (s *HousekeepingService) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.Sessions().DeleteExpiredSessions(ctx); err != nil {
		s.logger.Warn("failed to delete expired sessions", slog.String("error", err.Error()))
	}

	cutoff := time.Now().Add(-s.retention)
	if err := s.store.AuditLog().DeleteEventsBefore(ctx, cutoff); err != nil {
		s.logger.Warn("failed to delete old audit events", slog.String("error", err.Error()))
	}
}
