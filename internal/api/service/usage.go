package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geofleet/geofleet/internal/api/store"
)

const DefaultUsageFlushInterval = time.Minute

// UsageService accumulates per-user request counts in memory and flushes
// them to storage on an interval. Counting stays off the request path so a
// slow database never delays responses.
type UsageService struct {
	store    store.Store
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	counts map[int64]int64

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewUsageService(st store.Store, logger *slog.Logger, interval time.Duration) *UsageService {
	if interval <= 0 {
		interval = DefaultUsageFlushInterval
	}
	return &UsageService{
		store:    st,
		logger:   logger,
		interval: interval,
		counts:   make(map[int64]int64),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Record counts one request for the given user.
func (s *UsageService) Record(userID int64) {
	s.mu.Lock()
	s.counts[userID]++
	s.mu.Unlock()
}

// Start begins the background flush worker.
func (s *UsageService) Start() {
	go s.run()
}

// Stop shuts the worker down and flushes any remaining counts.
func (s *UsageService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *UsageService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.stopCh:
			s.flush()
			return
		}
	}
}

func (s *UsageService) flush() {
	s.mu.Lock()
	counts := s.counts
	s.counts = make(map[int64]int64)
	s.mu.Unlock()

	if len(counts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	day := time.Now().UTC().Format("2006-01-02")
	for userID, n := range counts {
		if err := s.store.UsageStats().AddRequests(ctx, day, userID, n); err != nil {
			s.logger.Warn("failed to flush usage counts",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
}
