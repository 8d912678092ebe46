package identity

import (
	"context"
	"fmt"
	"time"

	"registrar/engine/library"
	"registrar/messaging/eventlog"
)

// Sweep drops identities whose every challenge expired before being accepted. A swept
// address is remembered for one more TTL so a proof verified just before the sweep is
// dropped as stale instead of being treated as an update for an unknown address.
func (r *Registry) Sweep(ctx context.Context) error {
	now := r.now()
	for addr, at := range r.removed {
		if now.Sub(at) >= r.ttl {
			delete(r.removed, addr)
		}
	}
	for addr, ident := range r.idents {
		if !expired(ident, now) {
			continue
		}
		if err := r.pending.Delete(ctx, addr.String()); err != nil {
			return fmt.Errorf("%w: remove expired identity %s: %w", library.ErrFatal, addr, err)
		}
		if err := r.rooms.Delete(ctx, addr.String()); err != nil {
			return fmt.Errorf("%w: remove room of %s: %w", library.ErrFatal, addr, err)
		}
		delete(r.idents, addr)
		r.removed[addr] = now
		r.metrics.IncrementExpired()
		r.publish(ctx, eventlog.IdentityExpired, eventlog.Removed{Address: addr})
		library.LogCLI(fmt.Sprintf("Pending identity %s expired", addr), 4)
	}
	r.metrics.SetPending(len(r.idents))
	return nil
}

func expired(ident library.OnChainIdentity, now time.Time) bool {
	states := ident.States()
	if len(states) == 0 {
		return false
	}
	for _, s := range states {
		if s.ChallengeStatus == library.ChallengeAccepted || !s.Expired(now) {
			return false
		}
	}
	return true
}
