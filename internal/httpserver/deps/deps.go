package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sourcehub/internal/cache"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
	"github.com/MrSnakeDoc/sourcehub/internal/manager"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedCIDRS []string // networks allowed on mutating routes and /metrics
	TrustProxy   bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)

	TestRateBurst     int // connection tests allowed in a burst per client IP
	TestRatePerMinute int // connection tests refilled per minute per client IP

	Manager           *manager.Manager // source registry and aggregation
	Cache             *cache.Cache     // aggregate cache shared with Manager
	RedisClient       *redis.Client    // nil when no Redis is wired (tests)
	HealthPollTrigger chan struct{}    // manual health poll; nil disables POST /api/health/poll
}

// Now returns the current time through TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
