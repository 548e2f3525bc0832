package scorer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
)

// GuardConfig bounds oracle calls.
type GuardConfig struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables rate limiting
	Breaker           resilience.BreakerConfig
}

// GuardedOracle wraps an Oracle with a per-call timeout, a rate limiter and a
// circuit breaker. It never retries. Every failure it returns matches
// model.ErrExternalService.
type GuardedOracle struct {
	name    string
	next    Oracle
	timeout time.Duration
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewGuardedOracle wraps next. name identifies the provider in logs.
func NewGuardedOracle(name string, next Oracle, cfg GuardConfig) *GuardedOracle {
	g := &GuardedOracle{
		name:    name,
		next:    next,
		timeout: cfg.Timeout,
		breaker: resilience.NewBreaker(name, cfg.Breaker),
	}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return g
}

// Breaker exposes the breaker for health reporting.
func (g *GuardedOracle) Breaker() *resilience.Breaker {
	return g.breaker
}

// Classify implements Oracle.
func (g *GuardedOracle) Classify(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", eris.Wrapf(model.ErrExternalService, "scorer: %s rate limit wait: %v", g.name, err)
		}
	}

	text, err := resilience.Call(ctx, g.breaker, func(ctx context.Context) (string, error) {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.next.Classify(ctx, prompt)
	})
	if err != nil {
		return "", eris.Wrapf(model.ErrExternalService, "scorer: %s classify: %v", g.name, err)
	}
	return text, nil
}
