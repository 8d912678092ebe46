package library

import (
	"fmt"
	"time"
)

// AccountState is one claimed external account of a pending identity together with
// its verification progress. Each instance owns exactly one challenge.
type AccountState struct {
	Account         Account         `json:"account"`
	AccountType     AccountType     `json:"account_ty"`
	AccountValidity AccountStatus   `json:"account_validity"`
	Challenge       Challenge       `json:"challenge"`
	ChallengeStatus ChallengeStatus `json:"challenge_status"`
	SkipInform      bool            `json:"skip_inform"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
}

// NewAccountState returns a fresh state with a new random challenge.
func NewAccountState(account Account, ty AccountType) *AccountState {
	return &AccountState{
		Account:         account,
		AccountType:     ty,
		AccountValidity: AccountUnknown,
		Challenge:       NewChallenge(),
		ChallengeStatus: ChallengeUnconfirmed,
	}
}

func (s *AccountState) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// OnChainIdentity is a pending identity keyed by its chain address.
type OnChainIdentity struct {
	NetworkAddress NetworkAddress `json:"network_address"`
	DisplayName    *string        `json:"display_name"`
	LegalName      *string        `json:"legal_name"`
	Email          *AccountState  `json:"email"`
	Web            *AccountState  `json:"web"`
	Twitter        *AccountState  `json:"twitter"`
	Matrix         *AccountState  `json:"matrix"`
	Nostr          *AccountState  `json:"nostr,omitempty"`
}

func (i *OnChainIdentity) Address() NetAccount {
	return i.NetworkAddress.Address
}

// State returns the account state held for ty, nil when the identity does not claim it.
func (i *OnChainIdentity) State(ty AccountType) (*AccountState, error) {
	slot, err := i.slot(ty)
	if err != nil {
		return nil, err
	}
	return *slot, nil
}

func (i *OnChainIdentity) SetState(ty AccountType, state *AccountState) error {
	slot, err := i.slot(ty)
	if err != nil {
		return err
	}
	*slot = state
	return nil
}

// States returns the present account states in ClaimableTypes order.
func (i *OnChainIdentity) States() []*AccountState {
	var out []*AccountState
	for _, ty := range ClaimableTypes {
		if s, _ := i.State(ty); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (i *OnChainIdentity) slot(ty AccountType) (**AccountState, error) {
	switch ty {
	case AccountEmail:
		return &i.Email, nil
	case AccountWeb:
		return &i.Web, nil
	case AccountTwitter:
		return &i.Twitter, nil
	case AccountMatrix:
		return &i.Matrix, nil
	case AccountNostr:
		return &i.Nostr, nil
	}
	return nil, fmt.Errorf("%w: identities have no %q account", ErrUnsupported, ty)
}

// Clone returns a deep copy so callers can hand identities across goroutines.
func (i OnChainIdentity) Clone() OnChainIdentity {
	out := i
	if i.DisplayName != nil {
		v := *i.DisplayName
		out.DisplayName = &v
	}
	if i.LegalName != nil {
		v := *i.LegalName
		out.LegalName = &v
	}
	for _, ty := range ClaimableTypes {
		s, _ := i.State(ty)
		if s == nil {
			continue
		}
		c := *s
		if s.ExpiresAt != nil {
			t := *s.ExpiresAt
			c.ExpiresAt = &t
		}
		_ = out.SetState(ty, &c)
	}
	return out
}
