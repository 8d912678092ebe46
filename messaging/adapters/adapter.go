// Package adapters defines what an external service must provide to take part in
// verification, and runs each one as a bus collaborator.
package adapters

import (
	"context"
	"time"

	"registrar/engine/library"
)

// ExternalMessage is a message a claimant sent to the registrar on an external service.
type ExternalMessage struct {
	Origin    library.AccountType
	ID        string
	Sender    library.Account
	Body      string
	Timestamp time.Time
}

// Delivery is one challenge to hand to a claimant.
type Delivery struct {
	Address   library.NetworkAddress
	Account   library.Account
	Challenge library.Challenge
	// RoomID is the conversation used last time, empty if none is known.
	RoomID string
}

type Adapter interface {
	Name() string
	AccountType() library.AccountType
	// FetchMessages returns messages received since the previous call.
	FetchMessages(ctx context.Context) ([]ExternalMessage, error)
	// DeliverChallenge sends the challenge and returns the conversation it used, if the
	// service has such a thing.
	DeliverChallenge(ctx context.Context, d Delivery) (roomID string, err error)
}

// Sink receives fetched messages for checking against challenges.
type Sink interface {
	Submit(ctx context.Context, msg ExternalMessage) error
}
