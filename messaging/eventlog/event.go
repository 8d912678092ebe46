// Package eventlog publishes tagged records of what happened to pending identities
// for consumers outside the registrar.
package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"registrar/engine/library"
)

type Header struct {
	ID string `json:"id"`
	// Timestamp is milliseconds since the unix epoch.
	Timestamp int64 `json:"timestamp"`
	// TTL is in milliseconds. Zero means the event never expires.
	TTL int64 `json:"ttl"`
}

type Type string

const (
	IdentityInserted      Type = "identity_inserted"
	FieldStatusVerified   Type = "field_status_verified"
	IdentityFullyVerified Type = "identity_fully_verified"
	IdentityExpired       Type = "identity_expired"
)

type Body struct {
	Type    Type `json:"type"`
	Content any  `json:"content"`
}

type Event struct {
	Header Header `json:"header"`
	Body   Body   `json:"body"`
}

func (e Event) Expired(now time.Time) bool {
	if e.Header.TTL == 0 {
		return false
	}
	return now.UnixMilli() > e.Header.Timestamp+e.Header.TTL
}

// Inserted names the claimed account types only; challenges never leave the registrar.
type Inserted struct {
	Address      library.NetAccount    `json:"net_account"`
	AccountTypes []library.AccountType `json:"account_types"`
}

type FieldStatus struct {
	Address     library.NetAccount      `json:"net_account"`
	AccountType library.AccountType     `json:"account_ty"`
	Status      library.ChallengeStatus `json:"challenge_status"`
}

type Judged struct {
	Address   library.NetAccount `json:"net_account"`
	Judgement library.Judgement  `json:"judgement"`
}

type Removed struct {
	Address library.NetAccount `json:"net_account"`
}

// New stamps a body with a fresh id and the current time.
func New(ty Type, content any, ttl time.Duration) Event {
	return Event{
		Header: Header{
			ID:        uuid.NewString(),
			Timestamp: time.Now().UnixMilli(),
			TTL:       ttl.Milliseconds(),
		},
		Body: Body{Type: ty, Content: content},
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

// Multi publishes to every sink and returns the first error after trying them all.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
