package identity

import (
	"registrar/engine/library"
)

// MergePolicy decides which state survives when an address re-registers an account type it
// already has. The returned state is stored. A state with SkipInform set is not delivered again.
type MergePolicy func(existing, incoming *library.AccountState) *library.AccountState

// PreferIncoming keeps the existing state, challenge and progress included, when the account
// is unchanged, and takes the incoming state when the claimant switched accounts.
func PreferIncoming(existing, incoming *library.AccountState) *library.AccountState {
	if existing.Account == incoming.Account {
		kept := *existing
		kept.SkipInform = true
		return &kept
	}
	return incoming
}

// LegacyMerge keeps the incoming state marked skip-inform when the account is unchanged,
// and keeps the existing state untouched when the account changed.
func LegacyMerge(existing, incoming *library.AccountState) *library.AccountState {
	if existing.Account == incoming.Account {
		kept := *incoming
		kept.SkipInform = true
		return &kept
	}
	return existing
}

// MergePolicyByName resolves the registry.mergePolicy setting.
func MergePolicyByName(name string) (MergePolicy, bool) {
	switch name {
	case "", "prefer_incoming":
		return PreferIncoming, true
	case "legacy":
		return LegacyMerge, true
	}
	return nil, false
}
