package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"registrar/engine/library"
	"registrar/engine/metrics"
	"registrar/messaging/comms"
)

type RunnerConfig struct {
	PollInterval     time.Duration
	DeliveryAttempts int
	// RetryInterval is the first wait between delivery attempts; it grows exponentially.
	RetryInterval time.Duration
}

// Runner serves one adapter: it delivers the challenges the registry routes to the
// adapter's account type and feeds the adapter's inbox to the sink.
type Runner struct {
	adapter Adapter
	comms   *comms.Endpoint
	sink    Sink
	cfg     RunnerConfig
	metrics *metrics.Metrics
}

func NewRunner(a Adapter, ep *comms.Endpoint, sink Sink, cfg RunnerConfig, m *metrics.Metrics) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.DeliveryAttempts < 1 {
		cfg.DeliveryAttempts = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	return &Runner{adapter: a, comms: ep, sink: sink, cfg: cfg, metrics: m}
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	library.LogCLI(fmt.Sprintf("%s adapter started", r.adapter.Name()), 4)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if msg, ok := r.comms.TryRecv(); ok {
			if err := r.handle(ctx, msg); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-r.comms.Ready():
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Runner) handle(ctx context.Context, msg comms.Message) error {
	m, ok := msg.(comms.NotifyAccountVerification)
	if !ok {
		return fmt.Errorf("%w: %s adapter received unexpected %s message", library.ErrFatal, r.adapter.Name(), comms.Kind(msg))
	}
	r.deliver(ctx, m)
	return nil
}

func (r *Runner) deliver(ctx context.Context, m comms.NotifyAccountVerification) {
	d := Delivery{Address: m.Address, Account: m.Account, Challenge: m.Challenge, RoomID: m.RoomID}
	var room string
	attempt := func() error {
		sane := library.ValidateSaneExecutionTime()
		defer sane()
		var err error
		room, err = r.adapter.DeliverChallenge(ctx, d)
		if err != nil {
			r.metrics.IncrementAdapterDelivery(r.adapter.Name(), "retry")
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.DeliveryAttempts-1)), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		r.metrics.IncrementAdapterDelivery(r.adapter.Name(), "failed")
		library.LogCLI(fmt.Sprintf("%s adapter could not deliver the challenge for %s to %s: %s", r.adapter.Name(), m.Address.Address, m.Account, err), 1)
		return
	}
	r.metrics.IncrementAdapterDelivery(r.adapter.Name(), "delivered")
	r.comms.NotifyAccountStatus(m.Address, r.adapter.AccountType(), m.Challenge, library.AccountNotified)
	if room != "" && room != m.RoomID {
		r.comms.TrackRoomID(m.Address.Address, room)
	}
}

func (r *Runner) poll(ctx context.Context) {
	msgs, err := r.adapter.FetchMessages(ctx)
	if err != nil {
		library.LogCLI(fmt.Sprintf("%s adapter failed to fetch messages: %s", r.adapter.Name(), err), 2)
		return
	}
	r.metrics.AddFetched(r.adapter.Name(), len(msgs))
	for _, msg := range msgs {
		if err := r.sink.Submit(ctx, msg); err != nil {
			return
		}
	}
}
