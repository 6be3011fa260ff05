package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

// HealthChecker probes every registered source.
type HealthChecker interface {
	CheckAllHealth(ctx context.Context) map[string]domain.HealthStatus
}

// HealthPoller periodically re-checks every source. Health stays pull based: this is just
// one more caller, on a timer or on demand.
type HealthPoller struct {
	checker       HealthChecker
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
	manualTrigger chan struct{}
}

// NewHealthPoller creates a new health poller
func NewHealthPoller(
	checker HealthChecker,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *HealthPoller {
	return &HealthPoller{
		checker:       checker,
		logger:        log.With(logger.Component("health-poller")),
		interval:      interval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic poll. The first poll happens after one interval; the
// manager checks every source once when it initializes.
func (hp *HealthPoller) Start(ctx context.Context) {
	ticker := time.NewTicker(hp.interval)
	go func() {
		defer close(hp.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hp.Poll(ctx)
			case <-hp.manualTrigger:
				hp.logger.Info("manual health poll triggered")
				hp.Poll(ctx)
			case <-hp.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the poller and waits for an in-progress poll to finish
func (hp *HealthPoller) Stop() {
	hp.stopOnce.Do(func() { close(hp.stopCh) })
	<-hp.done
}

// Poll checks every source once and logs a summary
func (hp *HealthPoller) Poll(ctx context.Context) map[string]domain.HealthStatus {
	start := time.Now()
	results := hp.checker.CheckAllHealth(ctx)

	var unhealthy []string
	for id, hs := range results {
		if !hs.Healthy {
			unhealthy = append(unhealthy, id)
		}
	}

	if len(unhealthy) > 0 {
		hp.logger.Warn("health poll found unhealthy sources",
			logger.Int("sources", len(results)),
			logger.Strings("unhealthy", unhealthy),
			logger.Duration("took", time.Since(start)))
	} else {
		hp.logger.Debug("health poll completed",
			logger.Int("sources", len(results)),
			logger.Duration("took", time.Since(start)))
	}
	return results
}
