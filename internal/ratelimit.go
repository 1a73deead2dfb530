package internal

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

var _ Gateway = (*RateLimitedGateway)(nil)

// RateLimitedGateway spaces out generation calls to stay under a
// requests-per-minute quota. Liveness probes are not limited.
type RateLimitedGateway struct {
	next    Gateway
	limiter *rate.Limiter
}

// NewRateLimitedGateway wraps next. A non-positive quota disables limiting.
func NewRateLimitedGateway(next Gateway, requestsPerMinute int) *RateLimitedGateway {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &RateLimitedGateway{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (g *RateLimitedGateway) Endpoint() string { return g.next.Endpoint() }

func (g *RateLimitedGateway) IsAvailable(ctx context.Context) bool {
	return g.next.IsAvailable(ctx)
}

func (g *RateLimitedGateway) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", &ModelRequestError{Op: "rate limit", Err: err}
	}
	return g.next.Generate(ctx, prompt)
}
