package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
)

// RateLimited spaces out calls to a Generator. A call that cannot get a token
// before its context ends fails as a transient capability error.
type RateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with a burst of one.
// perMinute <= 0 disables limiting and returns next unchanged.
func NewRateLimited(next Generator, perMinute int) Generator {
	if next == nil || perMinute <= 0 {
		return next
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *RateLimited) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", common.Transient("rate limit", err)
	}
	return r.next.Generate(ctx, req)
}

func (r *RateLimited) Model() string {
	return r.next.Model()
}
