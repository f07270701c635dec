package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/movemobility/dispatch/pkg/logger"
)

// ResilientSink wraps a PushSink with a circuit breaker so a failing push
// provider cannot slow down event delivery. While the breaker is open,
// sends are dropped; dispatch state never depends on them.
type ResilientSink struct {
	inner   PushSink
	breaker *gobreaker.CircuitBreaker
}

// NewResilientSink wraps the given sink with a breaker that opens after five
// consecutive failures and probes again after thirty seconds.
func NewResilientSink(inner PushSink) *ResilientSink {
	settings := gobreaker.Settings{
		Name:    "push-sink",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &ResilientSink{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Send delivers through the breaker.
func (r *ResilientSink) Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.inner.Send(ctx, userID, title, body, data)
	})
	return err
}
