// Package comms connects the identity registry to its collaborators. Every collaborator
// sends into one shared inbound mailbox; the registry reaches each collaborator through
// the outbox registered for its account type.
package comms

import (
	"context"
	"fmt"

	"github.com/sasha-s/go-deadlock"
	"registrar/engine/library"
)

type Bus struct {
	inbound *Mailbox
	mutex   *deadlock.RWMutex
	table   map[library.AccountType]*Outbox
}

func New() *Bus {
	return &Bus{
		inbound: NewMailbox(),
		mutex:   &deadlock.RWMutex{},
		table:   make(map[library.AccountType]*Outbox),
	}
}

// Register creates the mailbox for the collaborator that owns ty and returns
// the collaborator's end of it.
func (b *Bus) Register(ty library.AccountType) (*Endpoint, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, ok := b.table[ty]; ok {
		return nil, fmt.Errorf("%w: collaborator for %s", library.ErrAlreadyRegistered, ty)
	}
	mb := NewMailbox()
	b.table[ty] = &Outbox{ty: ty, mailbox: mb}
	return &Endpoint{ty: ty, inbound: b.inbound, mailbox: mb}, nil
}

// Outbox returns the registry's handle to the collaborator owning ty.
func (b *Bus) Outbox(ty library.AccountType) (*Outbox, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	o, ok := b.table[ty]
	if !ok {
		return nil, fmt.Errorf("%w: no collaborator registered for %s", library.ErrNotFound, ty)
	}
	return o, nil
}

// Inbound is the registry's end of the shared fan-in mailbox.
func (b *Bus) Inbound() *Mailbox {
	return b.inbound
}

// Outbox is held by the registry to message one collaborator.
type Outbox struct {
	ty      library.AccountType
	mailbox *Mailbox
}

func (o *Outbox) AccountType() library.AccountType { return o.ty }

func (o *Outbox) Send(msg Message) { o.mailbox.Send(msg) }

func (o *Outbox) NotifyAccountVerification(addr library.NetworkAddress, state *library.AccountState, roomID string) {
	o.Send(NotifyAccountVerification{
		Address:     addr,
		Account:     state.Account,
		AccountType: state.AccountType,
		Challenge:   state.Challenge,
		RoomID:      roomID,
	})
}

func (o *Outbox) JudgeIdentity(addr library.NetworkAddress, j library.Judgement) {
	o.Send(JudgeIdentity{Address: addr, Judgement: j})
}

func (o *Outbox) InvalidRequest(account library.Account, ty library.AccountType) {
	o.Send(InvalidRequest{Account: account, AccountType: ty})
}

// Endpoint is held by a collaborator. It sends to the registry and receives the
// collaborator's own messages.
type Endpoint struct {
	ty      library.AccountType
	inbound *Mailbox
	mailbox *Mailbox
}

func (e *Endpoint) AccountType() library.AccountType { return e.ty }

func (e *Endpoint) Send(msg Message) { e.inbound.Send(msg) }

func (e *Endpoint) NotifyNewIdentity(ident library.OnChainIdentity) {
	e.Send(NewJudgementRequest{Identity: ident})
}

func (e *Endpoint) NotifyChallengeStatus(addr library.NetworkAddress, ty library.AccountType, challenge library.Challenge, status library.ChallengeStatus) {
	e.Send(UpdateChallengeStatus{Address: addr, AccountType: ty, Challenge: challenge, Status: status})
}

func (e *Endpoint) NotifyAccountStatus(addr library.NetworkAddress, ty library.AccountType, challenge library.Challenge, validity library.AccountStatus) {
	e.Send(UpdateAccountStatus{Address: addr, AccountType: ty, Challenge: challenge, Validity: validity})
}

func (e *Endpoint) TrackRoomID(addr library.NetAccount, roomID string) {
	e.Send(TrackRoomID{Address: addr, RoomID: roomID})
}

func (e *Endpoint) RequestAccountState(account library.Account, ty library.AccountType) {
	e.Send(RequestAccountState{Account: account, AccountType: ty})
}

func (e *Endpoint) Recv(ctx context.Context) (Message, error) { return e.mailbox.Recv(ctx) }

func (e *Endpoint) TryRecv() (Message, bool) { return e.mailbox.TryRecv() }

func (e *Endpoint) Ready() <-chan struct{} { return e.mailbox.Ready() }
