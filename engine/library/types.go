package library

import (
	"fmt"
	"strings"
)

// Account is an account identifier on an external service, e.g. "@alice:matrix.org".
type Account string

func (a Account) String() string { return string(a) }

// AccountType is the external service an account lives on. The reserved types
// are internal roles on the bus rather than claimable accounts.
type AccountType string

const (
	AccountEmail   AccountType = "email"
	AccountWeb     AccountType = "web"
	AccountTwitter AccountType = "twitter"
	AccountMatrix  AccountType = "matrix"
	AccountNostr   AccountType = "nostr"

	ReservedConnector AccountType = "reserved_connector"
	ReservedEmitter   AccountType = "reserved_emitter"
)

// ClaimableTypes lists every account type an identity can carry, in storage order.
var ClaimableTypes = []AccountType{AccountEmail, AccountWeb, AccountTwitter, AccountMatrix, AccountNostr}

func (t AccountType) IsReserved() bool {
	return t == ReservedConnector || t == ReservedEmitter
}

// ParseAccountType accepts the wire spellings of an account type, including "riot" for matrix.
func ParseAccountType(s string) (AccountType, error) {
	switch strings.ToLower(s) {
	case "email":
		return AccountEmail, nil
	case "web":
		return AccountWeb, nil
	case "twitter":
		return AccountTwitter, nil
	case "matrix", "riot":
		return AccountMatrix, nil
	case "nostr":
		return AccountNostr, nil
	}
	return "", fmt.Errorf("%w: account type %q", ErrUnsupported, s)
}

// NetAccount is the chain address string, the primary key of a pending identity.
type NetAccount string

func (n NetAccount) String() string { return string(n) }

// PubKey is the hex encoded public key behind a NetAccount.
type PubKey string

type NetworkAddress struct {
	Address NetAccount `json:"address"`
	PubKey  PubKey     `json:"pub_key"`
}

// AccountStatus is the validity of an external account as reported by its collaborator.
type AccountStatus string

const (
	AccountUnknown  AccountStatus = "unknown"
	AccountValid    AccountStatus = "valid"
	AccountInvalid  AccountStatus = "invalid"
	AccountNotified AccountStatus = "notified"
)

type ChallengeStatus string

const (
	ChallengeUnconfirmed ChallengeStatus = "unconfirmed"
	ChallengeAccepted    ChallengeStatus = "accepted"
	ChallengeRejected    ChallengeStatus = "rejected"
)

// Judgement is the verdict sent back to the chain.
type Judgement string

const (
	JudgementUnknown    Judgement = "unknown"
	JudgementReasonable Judgement = "reasonable"
	JudgementKnownGood  Judgement = "known_good"
	JudgementErroneous  Judgement = "erroneous"
)
