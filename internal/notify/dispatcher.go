package notify

import (
	"context"
	"sync"
	"time"

	"grocer/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Dispatcher sends messages in the background so request handlers never
// wait on SMTP. Failed sends are retried and then logged; they never fail
// the originating operation.
type Dispatcher struct {
	mailer     Mailer
	maxRetries uint64
	timeout    time.Duration
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	newBackOff func() backoff.BackOff

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. timeout bounds each delivery including retries.
func NewDispatcher(mailer Mailer, maxRetries int, timeout time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		mailer:     mailer,
		maxRetries: uint64(maxRetries),
		timeout:    timeout,
		metrics:    m,
		logger:     logger.With().Str("component", "notify").Logger(),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Dispatch queues msg for delivery. Messages dispatched after Close are dropped.
func (d *Dispatcher) Dispatch(msg Message) {
	if msg.To == "" {
		d.logger.Warn().Str("subject", msg.Subject).Msg("Dropping email without recipient")
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn().Str("to", msg.To).Msg("Dispatcher closed, dropping email")
		d.metrics.Notification("dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.deliver(msg)
	}()
}

func (d *Dispatcher) deliver(msg Message) {
	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), d.maxRetries), ctx)
	err := backoff.RetryNotify(func() error {
		return d.mailer.Send(ctx, msg)
	}, policy, func(err error, wait time.Duration) {
		d.logger.Warn().Err(err).Str("to", msg.To).Dur("retry_in", wait).Msg("Email send failed, retrying")
	})
	if err != nil {
		d.logger.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("Failed to send email")
		d.metrics.Notification("failed")
		return
	}

	d.logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("Email sent")
	d.metrics.Notification("sent")
}

// Close stops accepting messages and waits for in-flight deliveries until
// ctx is done, after which outstanding sends are cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
