package relays

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr/nip06"
	"registrar/engine/library"
)

// Wallet is the key the registrar publishes challenges with.
type Wallet struct {
	PrivateKey string `json:"private_key"`
	SeedWords  string `json:"seed_words,omitempty"`
	PublicKey  string `json:"public_key"`
}

// LoadOrCreateWallet reads the wallet at path, creating and saving a new one if there is none.
func LoadOrCreateWallet(path string) (Wallet, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		var w Wallet
		if err := json.Unmarshal(b, &w); err != nil {
			return Wallet{}, fmt.Errorf("parse wallet file %s: %w", path, err)
		}
		return WalletFromKey(w.PrivateKey)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Wallet{}, err
	}
	w, err := NewWallet()
	if err != nil {
		return Wallet{}, err
	}
	library.LogCLI(fmt.Sprintf("Generated a new nostr key %s, write down the seed words if you want to keep it", w.PublicKey), 4)
	b, err = json.Marshal(w)
	if err != nil {
		return Wallet{}, err
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return Wallet{}, fmt.Errorf("save wallet file %s: %w", path, err)
	}
	return w, nil
}

func NewWallet() (Wallet, error) {
	seedWords, err := nip06.GenerateSeedWords()
	if err != nil {
		return Wallet{}, err
	}
	sk, err := nip06.PrivateKeyFromSeed(nip06.SeedFromWords(seedWords))
	if err != nil {
		return Wallet{}, err
	}
	w, err := WalletFromKey(sk)
	w.SeedWords = seedWords
	return w, err
}

// WalletFromKey derives the x-only public key of a hex private key.
func WalletFromKey(privateKey string) (Wallet, error) {
	keyb, err := hex.DecodeString(privateKey)
	if err != nil {
		return Wallet{}, fmt.Errorf("decode private key: %w", err)
	}
	if len(keyb) != 32 {
		return Wallet{}, fmt.Errorf("private key must be 32 bytes, got %d", len(keyb))
	}
	_, pubkey := btcec.PrivKeyFromBytes(keyb)
	return Wallet{
		PrivateKey: privateKey,
		PublicKey:  hex.EncodeToString(schnorr.SerializePubKey(pubkey)),
	}, nil
}
