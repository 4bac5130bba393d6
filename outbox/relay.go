package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Transport delivers one message to its destination.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// RelayConfig tunes polling and retries.
type RelayConfig struct {
	Workers        int
	BatchSize      int
	PollInterval   time.Duration
	Lease          time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	return c
}

// Relay moves pending messages to the transport. Delivery is at least once:
// a crash between Deliver and MarkProcessed repeats the message after the lease.
type Relay struct {
	store     Store
	transport Transport
	cfg       RelayConfig
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewRelay(store Store, transport Transport, cfg RelayConfig, log logrus.FieldLogger) *Relay {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Relay{
		store:     store,
		transport: transport,
		cfg:       cfg.withDefaults(),
		log:       log,
		now:       time.Now,
	}
}

func (r *Relay) WithClock(now func() time.Time) *Relay {
	r.now = now
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			return r.loop(ctx, worker)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Relay) loop(ctx context.Context, worker int) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	log := r.log.WithField("worker", worker)

	for {
		if _, err := r.ProcessBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Error("outbox batch failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch leases one batch and attempts every message in it. It returns the number delivered.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	now := r.now().UTC()
	msgs, err := r.store.Lease(ctx, now, r.cfg.Lease, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, msg := range msgs {
		log := r.log.WithFields(logrus.Fields{"topic": msg.Topic, "message_id": msg.ID})

		deliverErr := r.transport.Deliver(ctx, msg)
		if deliverErr == nil {
			if err := r.store.MarkProcessed(ctx, msg.ID, r.now().UTC()); err != nil {
				return delivered, fmt.Errorf("outbox: mark processed: %w", err)
			}
			delivered++
			continue
		}

		attempts := msg.Attempts + 1
		dead := attempts >= r.cfg.MaxAttempts
		next := r.now().UTC().Add(r.retryDelay(attempts))
		if err := r.store.MarkFailed(ctx, msg.ID, attempts, next, deliverErr.Error(), dead); err != nil {
			return delivered, fmt.Errorf("outbox: mark failed: %w", err)
		}
		if dead {
			log.WithError(deliverErr).WithField("attempts", attempts).Error("outbox message dead-lettered")
		} else {
			log.WithError(deliverErr).WithFields(logrus.Fields{"attempts": attempts, "next_attempt_at": next}).Warn("outbox delivery failed")
		}
	}
	return delivered, nil
}

// retryDelay is the exponential schedule for the given attempt count, starting at InitialBackoff.
func (r *Relay) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.InitialInterval
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
