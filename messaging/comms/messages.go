package comms

import (
	"registrar/engine/library"
)

// Message is anything carried by the bus. The set of variants is closed.
type Message interface {
	kind() string
}

// Kind names the variant, for logs and metrics.
func Kind(m Message) string {
	if m == nil {
		return "nil"
	}
	return m.kind()
}

// Messages sent by collaborators to the registry.

// NewJudgementRequest registers, or re-registers, a pending identity.
type NewJudgementRequest struct {
	Identity library.OnChainIdentity
}

// UpdateChallengeStatus and UpdateAccountStatus name the challenge they answer for, so the
// registry can drop updates for a state that was replaced while they were in flight.
type UpdateChallengeStatus struct {
	Address     library.NetworkAddress
	AccountType library.AccountType
	Challenge   library.Challenge
	Status      library.ChallengeStatus
}

type UpdateAccountStatus struct {
	Address     library.NetworkAddress
	AccountType library.AccountType
	Challenge   library.Challenge
	Validity    library.AccountStatus
}

// TrackRoomID records the external conversation a collaborator uses to reach an address.
type TrackRoomID struct {
	Address library.NetAccount
	RoomID  string
}

// RequestAccountState asks which pending identity claims an external account.
type RequestAccountState struct {
	Account     library.Account
	AccountType library.AccountType
}

// Messages sent by the registry to collaborators.

// NotifyAccountVerification carries a challenge to the collaborator that delivers it, or
// answers a RequestAccountState on the emitter. RoomID is empty when no mapping is tracked.
type NotifyAccountVerification struct {
	Address     library.NetworkAddress
	Account     library.Account
	AccountType library.AccountType
	Challenge   library.Challenge
	RoomID      string
}

type JudgeIdentity struct {
	Address   library.NetworkAddress
	Judgement library.Judgement
}

// InvalidRequest answers a RequestAccountState that matched no pending identity.
type InvalidRequest struct {
	Account     library.Account
	AccountType library.AccountType
}

func (NewJudgementRequest) kind() string       { return "new_judgement_request" }
func (UpdateChallengeStatus) kind() string     { return "update_challenge_status" }
func (UpdateAccountStatus) kind() string       { return "update_account_status" }
func (TrackRoomID) kind() string               { return "track_room_id" }
func (RequestAccountState) kind() string       { return "request_account_state" }
func (NotifyAccountVerification) kind() string { return "notify_account_verification" }
func (JudgeIdentity) kind() string             { return "judge_identity" }
func (InvalidRequest) kind() string            { return "invalid_request" }
