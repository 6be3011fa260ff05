package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

// CheckHealth probes one source and records the outcome on it. A source that was offline
// or in error passes through connecting first. The only error is an unknown id.
func (m *Manager) CheckHealth(ctx context.Context, id string) (domain.HealthStatus, error) {
	m.mu.Lock()
	src, ok := m.sources[id]
	if !ok {
		m.mu.Unlock()
		return domain.HealthStatus{}, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	adapter, ok := m.adapters[id]
	if !ok {
		m.mu.Unlock()
		err := m.contractViolation("no adapter for registered source", id)
		return domain.HealthStatus{Status: domain.StatusError, Error: err.Error(), CheckedAt: m.now()}, nil
	}
	before := src.Status
	if before == domain.StatusOffline || before == domain.StatusError {
		src.Status = domain.StatusConnecting
	}
	m.mu.Unlock()

	start := time.Now()
	hs := adapter.CheckHealth(ctx)
	healthCheckDuration.Observe(time.Since(start).Seconds())
	healthChecksTotal.WithLabelValues(string(hs.Status)).Inc()

	m.mu.Lock()
	src, ok = m.sources[id]
	if !ok {
		// removed while the probe was running
		m.mu.Unlock()
		return hs, nil
	}
	src.Status = hs.Status
	if hs.Healthy {
		src.LastError = ""
	} else {
		src.LastError = hs.Error
	}
	m.health[id] = hs
	m.mu.Unlock()

	if hs.Status != before {
		m.logger.Info("source status changed",
			logger.String("source_id", id),
			logger.String("from", string(before)),
			logger.String("to", string(hs.Status)))
		m.emit(domain.EventStatusChanged, id)
	}
	return hs, nil
}

// CheckAllHealth probes every registered source concurrently and waits for all of them.
func (m *Manager) CheckAllHealth(ctx context.Context) map[string]domain.HealthStatus {
	m.mu.RLock()
	ids := append([]string(nil), m.order...)
	m.mu.RUnlock()
	return m.checkHealthOf(ctx, ids)
}

func (m *Manager) checkHealthOf(ctx context.Context, ids []string) map[string]domain.HealthStatus {
	var (
		g   errgroup.Group
		mu  sync.Mutex
		out = make(map[string]domain.HealthStatus, len(ids))
	)
	for _, id := range ids {
		g.Go(func() error {
			hs, err := m.CheckHealth(ctx, id)
			if err != nil {
				// unregistered since ids was taken
				return nil
			}
			mu.Lock()
			out[id] = hs
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Health returns the last recorded probe of a source.
func (m *Manager) Health(id string) (domain.HealthStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hs, ok := m.health[id]
	return hs, ok
}
