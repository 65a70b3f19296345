package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// BreakerClient wraps a Client with a circuit breaker so that a dead model
// endpoint stops consuming the retry budget of every conversation turn.
// Callers that must fail open (the relevance classifier) treat
// gobreaker.ErrOpenState like any other error.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps client with a named circuit breaker.
func NewBreakerClient(inner Client, name string, logger *logging.Logger) *BreakerClient {
	if logger == nil {
		logger = logging.Default()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerClient{inner: inner, breaker: cb}
}

// Complete forwards to the wrapped client through the breaker.
func (c *BreakerClient) Complete(ctx context.Context, req Request) (Response, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Complete(ctx, req)
	})
	if err != nil {
		return Response{}, err
	}
	return out.(Response), nil
}
