package connector

import (
	"encoding/json"
	"fmt"

	"registrar/engine/library"
)

type EventType string

const (
	EventAck                 EventType = "ack"
	EventError               EventType = "error"
	EventNewJudgementRequest EventType = "newJudgementRequest"
	EventJudgementResult     EventType = "judgementResult"
)

func (e *EventType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch t := EventType(s); t {
	case EventAck, EventError, EventNewJudgementRequest, EventJudgementResult:
		*e = t
		return nil
	}
	return fmt.Errorf("unknown event %q", s)
}

// Message is the envelope of every frame exchanged with the watcher.
type Message struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type AckResponse struct {
	Result string `json:"result"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type JudgementResponse struct {
	Address   library.NetAccount `json:"address"`
	Judgement library.Judgement  `json:"judgement"`
}

type JudgementRequest struct {
	Address  string   `json:"address"`
	Accounts Accounts `json:"accounts"`
}

type Accounts struct {
	DisplayName *string `json:"display_name"`
	LegalName   *string `json:"legal_name"`
	Email       *string `json:"email"`
	Web         *string `json:"web"`
	Twitter     *string `json:"twitter"`
	Matrix      *string `json:"riot"`
	Nostr       *string `json:"nostr,omitempty"`
}

const (
	connectionEstablished = "Connection established"
	messageAcknowledged   = "Message acknowledged"
	messageRejected       = "Message is invalid. Rejected"
)

func parseMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Event == "" {
		return msg, fmt.Errorf("envelope without event")
	}
	return msg, nil
}

// Identity converts the request into a fresh pending identity with one new
// challenge per claimed account.
func (r JudgementRequest) Identity() (library.OnChainIdentity, error) {
	addr, err := library.NetworkAddressFromString(r.Address)
	if err != nil {
		return library.OnChainIdentity{}, err
	}
	ident := library.OnChainIdentity{
		NetworkAddress: addr,
		DisplayName:    r.Accounts.DisplayName,
		LegalName:      r.Accounts.LegalName,
	}
	claims := []struct {
		ty      library.AccountType
		account *string
	}{
		{library.AccountEmail, r.Accounts.Email},
		{library.AccountWeb, r.Accounts.Web},
		{library.AccountTwitter, r.Accounts.Twitter},
		{library.AccountMatrix, r.Accounts.Matrix},
		{library.AccountNostr, r.Accounts.Nostr},
	}
	for _, c := range claims {
		if c.account == nil {
			continue
		}
		if err := ident.SetState(c.ty, library.NewAccountState(library.Account(*c.account), c.ty)); err != nil {
			return library.OnChainIdentity{}, err
		}
	}
	return ident, nil
}
