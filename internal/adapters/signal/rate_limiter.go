package signal

import (
	"time"

	"github.com/dkeye/meethub/internal/core"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// connRateLimiter is a token bucket over one connection's inbound frames.
// A zero rate disables it.
type connRateLimiter struct {
	lim      *rate.Limiter
	lastWarn time.Time
	dropped  int
}

func newConnRateLimiter(perSecond float64, burst int) *connRateLimiter {
	if perSecond <= 0 {
		return &connRateLimiter{}
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &connRateLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (rl *connRateLimiter) Allow() bool {
	if rl.lim == nil {
		return true
	}
	return rl.lim.Allow()
}

// warn logs at most once a second per connection.
func (rl *connRateLimiter) warn(c *core.Connection) {
	rl.dropped++
	now := time.Now()
	if now.Sub(rl.lastWarn) < time.Second {
		return
	}
	log.Warn().Str("module", "signal").Str("conn", string(c.ID())).Int("dropped", rl.dropped).Msg("rate limited")
	rl.lastWarn = now
	rl.dropped = 0
}

// bypassesLimit lets liveness replies and explicit leaves through a drained bucket.
func bypassesLimit(data []byte) bool {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return false
	}
	switch core.Classify(head.Type) {
	case core.KindPong, core.KindLeave:
		return true
	}
	return false
}
