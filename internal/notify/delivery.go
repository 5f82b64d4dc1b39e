package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Delivery is a bounded mail outbox drained by Run. Enqueue never blocks;
// mail is dropped when the outbox is full.
type Delivery struct {
	mailer  Mailer
	outbox  chan Mail
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

type DeliveryOption func(*Delivery)

// WithRate caps sends per minute. perMinute <= 0 leaves sending unlimited.
func WithRate(perMinute, burst int) DeliveryOption {
	return func(d *Delivery) {
		if perMinute <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), max(burst, 1))
	}
}

// WithQueueSize sizes the outbox. Sizes below one keep the default.
func WithQueueSize(n int) DeliveryOption {
	return func(d *Delivery) {
		if n > 0 {
			d.outbox = make(chan Mail, n)
		}
	}
}

func WithDeliveryLogger(logger *slog.Logger) DeliveryOption {
	return func(d *Delivery) { d.logger = logger }
}

func NewDelivery(mailer Mailer, opts ...DeliveryOption) *Delivery {
	d := &Delivery{
		mailer:  mailer,
		outbox:  make(chan Mail, 256),
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("mail circuit changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return d
}

// Enqueue schedules m and reports whether it was accepted.
func (d *Delivery) Enqueue(m Mail) bool {
	select {
	case d.outbox <- m:
		return true
	default:
		d.logger.Warn("mail outbox full, dropping", "to", m.To, "subject", m.Subject)
		return false
	}
}

// Run drains the outbox until ctx is done.
func (d *Delivery) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-d.outbox:
			if err := d.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			d.send(ctx, m)
		}
	}
}

func (d *Delivery) send(ctx context.Context, m Mail) {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.mailer.Send(ctx, m)
	})
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		d.logger.WarnContext(ctx, "mail skipped, circuit open", "to", m.To)
	default:
		d.logger.ErrorContext(ctx, "mail failed", "to", m.To, "error", err)
	}
}
