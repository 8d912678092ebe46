package identity

import (
	"context"
	"fmt"

	"registrar/engine/library"
	"registrar/messaging/comms"
	"registrar/messaging/eventlog"
)

func (r *Registry) handleNewJudgementRequest(ctx context.Context, m comms.NewJudgementRequest) error {
	ident := m.Identity.Clone()
	addr := ident.Address()
	if existing, ok := r.idents[addr]; ok {
		existing = existing.Clone()
		for _, ty := range library.ClaimableTypes {
			incoming, _ := ident.State(ty)
			current, _ := existing.State(ty)
			if incoming == nil || current == nil {
				continue
			}
			_ = ident.SetState(ty, r.merge(current, incoming))
		}
	}
	if r.ttl > 0 {
		expires := r.now().Add(r.ttl).UTC()
		for _, s := range ident.States() {
			if s.ExpiresAt == nil {
				t := expires
				s.ExpiresAt = &t
			}
		}
	}

	// read before persisting so a failed lookup leaves nothing half applied
	room, err := r.room(ctx, addr)
	if err != nil {
		return err
	}
	if err := r.persist(ctx, ident); err != nil {
		return err
	}
	r.idents[addr] = ident
	delete(r.removed, addr)
	r.metrics.SetPending(len(r.idents))
	inserted := eventlog.Inserted{Address: addr}
	for _, s := range ident.States() {
		inserted.AccountTypes = append(inserted.AccountTypes, s.AccountType)
	}
	r.publish(ctx, eventlog.IdentityInserted, inserted)
	library.LogCLI(fmt.Sprintf("Pending identity %s stored", addr), 4)

	for _, state := range ident.States() {
		if state.SkipInform {
			continue
		}
		out, err := r.bus.Outbox(state.AccountType)
		if err != nil {
			r.metrics.IncrementDeliverySkipped(string(state.AccountType))
			library.LogCLI(fmt.Sprintf("no collaborator delivers %s challenges, %s of %s left undelivered", state.AccountType, state.Account, addr), 2)
			continue
		}
		out.NotifyAccountVerification(ident.NetworkAddress, state, room)
		r.metrics.IncrementDelivery(string(state.AccountType))
	}
	return nil
}

// lookup returns the identity at addr and its state for ty. An address the registry never
// held is fatal. A state that was replaced or dropped since the update was issued is stale.
func (r *Registry) lookup(addr library.NetAccount, ty library.AccountType, challenge library.Challenge) (library.OnChainIdentity, library.AccountState, error) {
	ident, ok := r.idents[addr]
	if !ok {
		if _, swept := r.removed[addr]; swept {
			return ident, library.AccountState{}, fmt.Errorf("%w: %s expired before its %s update arrived", library.ErrStale, addr, ty)
		}
		return ident, library.AccountState{}, fmt.Errorf("%w: update for unknown address %s", library.ErrFatal, addr)
	}
	state, err := ident.State(ty)
	if err != nil {
		return ident, library.AccountState{}, fmt.Errorf("%w: %w", library.ErrFatal, err)
	}
	if state == nil {
		return ident, library.AccountState{}, fmt.Errorf("%w: %s no longer claims a %s account", library.ErrStale, addr, ty)
	}
	if state.Challenge != challenge {
		return ident, library.AccountState{}, fmt.Errorf("%w: %s update for %s answers a replaced challenge", library.ErrStale, ty, addr)
	}
	return ident.Clone(), *state, nil
}

func (r *Registry) handleChallengeStatus(ctx context.Context, m comms.UpdateChallengeStatus) error {
	addr := m.Address.Address
	ident, state, err := r.lookup(addr, m.AccountType, m.Challenge)
	if err != nil {
		return err
	}
	if state.ChallengeStatus == library.ChallengeAccepted && m.Status == library.ChallengeAccepted {
		library.LogCLI(fmt.Sprintf("%s challenge of %s was already accepted", m.AccountType, addr), 3)
		return nil
	}
	state.ChallengeStatus = m.Status
	_ = ident.SetState(m.AccountType, &state)
	if err := r.persist(ctx, ident); err != nil {
		return err
	}
	r.idents[addr] = ident
	r.publish(ctx, eventlog.FieldStatusVerified, eventlog.FieldStatus{Address: addr, AccountType: m.AccountType, Status: m.Status})

	if m.Status != library.ChallengeAccepted {
		return nil
	}
	// TODO: judge only once every claimed account is accepted, instead of on the first one.
	connector, err := r.bus.Outbox(library.ReservedConnector)
	if err != nil {
		return fmt.Errorf("%w: %w", library.ErrFatal, err)
	}
	connector.JudgeIdentity(ident.NetworkAddress, library.JudgementReasonable)
	r.metrics.IncrementJudgement(string(library.JudgementReasonable))
	r.publish(ctx, eventlog.IdentityFullyVerified, eventlog.Judged{Address: addr, Judgement: library.JudgementReasonable})
	library.LogCLI(fmt.Sprintf("Identity %s judged %s", addr, library.JudgementReasonable), 4)
	return nil
}

func (r *Registry) handleAccountStatus(ctx context.Context, m comms.UpdateAccountStatus) error {
	addr := m.Address.Address
	ident, state, err := r.lookup(addr, m.AccountType, m.Challenge)
	if err != nil {
		return err
	}
	state.AccountValidity = m.Validity
	_ = ident.SetState(m.AccountType, &state)
	if err := r.persist(ctx, ident); err != nil {
		return err
	}
	r.idents[addr] = ident
	return nil
}

func (r *Registry) handleTrackRoomID(ctx context.Context, m comms.TrackRoomID) error {
	if err := r.rooms.Put(ctx, m.Address.String(), []byte(m.RoomID)); err != nil {
		return fmt.Errorf("%w: persist room of %s: %w", library.ErrFatal, m.Address, err)
	}
	return nil
}

func (r *Registry) handleRequestAccountState(ctx context.Context, m comms.RequestAccountState) error {
	var probe library.OnChainIdentity
	if _, err := probe.State(m.AccountType); err != nil {
		return fmt.Errorf("%w: account state request: %w", library.ErrFatal, err)
	}
	emitter, err := r.bus.Outbox(library.ReservedEmitter)
	if err != nil {
		return fmt.Errorf("%w: %w", library.ErrFatal, err)
	}

	var match *library.OnChainIdentity
	for _, ident := range r.idents {
		state, _ := ident.State(m.AccountType)
		if state == nil || state.Account != m.Account {
			continue
		}
		if match == nil || ident.Address() < match.Address() {
			found := ident
			match = &found
		}
	}
	if match == nil {
		emitter.InvalidRequest(m.Account, m.AccountType)
		return nil
	}
	room, err := r.room(ctx, match.Address())
	if err != nil {
		return err
	}
	state, _ := match.State(m.AccountType)
	emitter.NotifyAccountVerification(match.NetworkAddress, state, room)
	return nil
}
