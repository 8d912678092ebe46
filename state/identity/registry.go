// Package identity keeps the pending identities. One goroutine owns the map: Run drains the
// bus and applies every change, persisting it before anyone is told about it.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"registrar/engine/database"
	"registrar/engine/library"
	"registrar/engine/metrics"
	"registrar/messaging/comms"
	"registrar/messaging/eventlog"
)

type Registry struct {
	pending database.Scope
	rooms   database.Scope
	bus     *comms.Bus
	idents  map[library.NetAccount]library.OnChainIdentity
	// removed remembers swept addresses for one TTL, so proofs still in flight are dropped as stale
	removed map[library.NetAccount]time.Time

	merge      MergePolicy
	ttl        time.Duration
	sweepEvery time.Duration
	events     eventlog.Publisher
	eventTTL   time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Registry)

func WithMergePolicy(p MergePolicy) Option {
	return func(r *Registry) { r.merge = p }
}

// WithChallengeTTL makes new challenges expire after ttl, checked every sweepEvery.
func WithChallengeTTL(ttl, sweepEvery time.Duration) Option {
	return func(r *Registry) {
		r.ttl = ttl
		r.sweepEvery = sweepEvery
	}
}

func WithEvents(p eventlog.Publisher, ttl time.Duration) Option {
	return func(r *Registry) {
		r.events = p
		r.eventTTL = ttl
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New loads every persisted pending identity. A record that cannot be decoded is fatal.
func New(ctx context.Context, db database.Database, bus *comms.Bus, opts ...Option) (*Registry, error) {
	r := &Registry{
		pending:    db.Scope(database.PendingIdentities),
		rooms:      db.Scope(database.ExternalRooms),
		bus:        bus,
		idents:     make(map[library.NetAccount]library.OnChainIdentity),
		removed:    make(map[library.NetAccount]time.Time),
		merge:      PreferIncoming,
		sweepEvery: time.Minute,
		events:     eventlog.Discard{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	entries, err := r.pending.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", library.ErrFatal, database.PendingIdentities, err)
	}
	for _, e := range entries {
		var ident library.OnChainIdentity
		if err := json.Unmarshal(e.Value, &ident); err != nil {
			return nil, fmt.Errorf("%w: decode pending identity %s: %w", library.ErrFatal, e.Key, err)
		}
		r.idents[ident.Address()] = ident
	}
	r.metrics.SetPending(len(r.idents))
	library.LogCLI(fmt.Sprintf("Identity registry loaded %d pending identities", len(r.idents)), 4)
	return r, nil
}

// Run processes bus messages until ctx is done or a fatal error occurs.
// Recoverable errors are logged and processing continues.
func (r *Registry) Run(ctx context.Context) error {
	inbound := r.bus.Inbound()
	var sweep <-chan time.Time
	if r.ttl > 0 {
		ticker := time.NewTicker(r.sweepEvery)
		defer ticker.Stop()
		sweep = ticker.C
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		if msg, ok := inbound.TryRecv(); ok {
			if err := r.Process(ctx, msg); err != nil {
				if library.IsFatal(err) {
					return err
				}
				report(err)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-inbound.Ready():
		case <-sweep:
			if err := r.Sweep(ctx); err != nil {
				if library.IsFatal(err) {
					return err
				}
				report(err)
			}
		}
	}
}

// report logs a recoverable error. Stale updates are expected and only warned about.
func report(err error) {
	if errors.Is(err, library.ErrStale) {
		library.LogCLI(err.Error(), 2)
		return
	}
	library.LogCLI(err.Error(), 1)
}

// Process applies one message. Only the goroutine running Run may call it while Run is active.
func (r *Registry) Process(ctx context.Context, msg comms.Message) error {
	r.metrics.IncrementHandled(comms.Kind(msg))
	switch m := msg.(type) {
	case comms.NewJudgementRequest:
		return r.handleNewJudgementRequest(ctx, m)
	case comms.UpdateChallengeStatus:
		return r.handleChallengeStatus(ctx, m)
	case comms.UpdateAccountStatus:
		return r.handleAccountStatus(ctx, m)
	case comms.TrackRoomID:
		return r.handleTrackRoomID(ctx, m)
	case comms.RequestAccountState:
		return r.handleRequestAccountState(ctx, m)
	}
	return fmt.Errorf("%w: registry received unexpected %s message", library.ErrFatal, comms.Kind(msg))
}

// Identities returns copies of every pending identity ordered by address.
// It must not be called while Run is active.
func (r *Registry) Identities() []library.OnChainIdentity {
	out := make([]library.OnChainIdentity, 0, len(r.idents))
	for _, ident := range r.idents {
		out = append(out, ident.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address() < out[j].Address() })
	return out
}

func (r *Registry) persist(ctx context.Context, ident library.OnChainIdentity) error {
	b, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("%w: encode identity %s: %w", library.ErrFatal, ident.Address(), err)
	}
	if err := r.pending.Put(ctx, ident.Address().String(), b); err != nil {
		return fmt.Errorf("%w: persist identity %s: %w", library.ErrFatal, ident.Address(), err)
	}
	return nil
}

func (r *Registry) room(ctx context.Context, addr library.NetAccount) (string, error) {
	b, ok, err := r.rooms.Get(ctx, addr.String())
	if err != nil {
		return "", fmt.Errorf("read room of %s: %w", addr, err)
	}
	if !ok {
		return "", nil
	}
	return string(b), nil
}

func (r *Registry) publish(ctx context.Context, ty eventlog.Type, content any) {
	if err := r.events.Publish(ctx, eventlog.New(ty, content, r.eventTTL)); err != nil {
		library.LogCLI(fmt.Sprintf("publishing %s event failed: %s", ty, err), 2)
	}
}
