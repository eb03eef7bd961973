// Package server throttles the frames a single peer may submit for fan-out
// so one runaway controller cannot saturate its channel.
package server

import (
	"fmt"
	"sync"
	"time"
)

// frameBudget is a token bucket sized by a RateLimitConfig: a peer may send
// Burst frames at once, and the bucket refills completely every
// RefillInterval. A nil *frameBudget admits every frame.
type frameBudget struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	perSec  float64
	tokens  float64
	updated time.Time
	now     func() time.Time
}

// newFrameBudget returns nil when cfg disables limiting (Burst <= 0).
func newFrameBudget(cfg RateLimitConfig) *frameBudget {
	if cfg.Burst <= 0 {
		return nil
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}

	b := &frameBudget{
		cfg:    cfg,
		perSec: float64(cfg.Burst) / cfg.RefillInterval.Seconds(),
		tokens: float64(cfg.Burst),
		now:    time.Now,
	}
	b.updated = b.now()
	return b
}

// admit spends one token for a frame and reports whether the frame may be
// relayed.
func (b *frameBudget) admit() bool {
	if b == nil {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (b *frameBudget) refill() {
	now := b.now()
	if elapsed := now.Sub(b.updated); elapsed > 0 {
		b.tokens = min(b.tokens+elapsed.Seconds()*b.perSec, float64(b.cfg.Burst))
	}
	b.updated = now
}

func (b *frameBudget) String() string {
	if b == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%d frames per %s", b.cfg.Burst, b.cfg.RefillInterval)
}
