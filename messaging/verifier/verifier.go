// Package verifier answers the question every adapter asks: does this incoming message
// prove control of a claimed account? It owns the reserved emitter role on the bus.
package verifier

import (
	"context"
	"fmt"
	"strings"

	"registrar/engine/library"
	"registrar/engine/metrics"
	"registrar/messaging/adapters"
	"registrar/messaging/comms"
)

type Verifier struct {
	comms   *comms.Endpoint
	queue   chan adapters.ExternalMessage
	metrics *metrics.Metrics
}

func New(ep *comms.Endpoint, queueSize int, m *metrics.Metrics) *Verifier {
	if queueSize < 1 {
		queueSize = 256
	}
	return &Verifier{
		comms:   ep,
		queue:   make(chan adapters.ExternalMessage, queueSize),
		metrics: m,
	}
}

// Submit queues msg for checking. It blocks while the queue is full.
func (v *Verifier) Submit(ctx context.Context, msg adapters.ExternalMessage) error {
	select {
	case v.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run checks queued messages one at a time until ctx is done or a fatal error occurs.
func (v *Verifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-v.queue:
			if err := v.verify(ctx, msg); err != nil {
				if library.IsFatal(err) {
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
				library.LogCLI(err.Error(), 2)
			}
		}
	}
}

func (v *Verifier) verify(ctx context.Context, msg adapters.ExternalMessage) error {
	v.comms.RequestAccountState(msg.Sender, msg.Origin)
	for {
		reply, err := v.comms.Recv(ctx)
		if err != nil {
			return err
		}
		switch r := reply.(type) {
		case comms.NotifyAccountVerification:
			if r.Account != msg.Sender || r.AccountType != msg.Origin {
				continue
			}
			if !strings.Contains(msg.Body, r.Challenge.String()) {
				v.metrics.IncrementVerification("mismatch")
				library.LogCLI(fmt.Sprintf("message %s from %s does not contain the challenge for %s", msg.ID, msg.Sender, r.Address.Address), 3)
				return nil
			}
			v.comms.NotifyChallengeStatus(r.Address, msg.Origin, r.Challenge, library.ChallengeAccepted)
			v.comms.NotifyAccountStatus(r.Address, msg.Origin, r.Challenge, library.AccountValid)
			v.metrics.IncrementVerification("accepted")
			library.LogCLI(fmt.Sprintf("%s account %s proved control for %s", msg.Origin, msg.Sender, r.Address.Address), 4)
			return nil
		case comms.InvalidRequest:
			if r.Account != msg.Sender || r.AccountType != msg.Origin {
				continue
			}
			v.metrics.IncrementVerification("unknown_sender")
			library.LogCLI(fmt.Sprintf("no pending identity claims %s account %s", msg.Origin, msg.Sender), 3)
			return nil
		default:
			return fmt.Errorf("%w: verifier received unexpected %s message", library.ErrFatal, comms.Kind(reply))
		}
	}
}
