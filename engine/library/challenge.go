package library

import (
	"crypto/rand"
	"encoding/hex"
)

// Challenge is the secret token a claimant must echo back through the claimed account.
type Challenge string

func NewChallenge() Challenge {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// the system entropy source failing leaves nothing sensible to do
		panic(err)
	}
	return Challenge(hex.EncodeToString(b))
}

func (c Challenge) String() string { return string(c) }
