package relays

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"registrar/engine/library"
	"registrar/messaging/adapters"
)

const challengeTemplate = "Identity verification for %s. Reply to this note with the challenge: %s"

type Config struct {
	Relays []string
	Wallet Wallet
	// Timeout bounds each relay round trip.
	Timeout time.Duration
}

// Adapter proves control of nostr accounts. Accounts are hex x-only public keys.
type Adapter struct {
	client client
	wallet Wallet
	since  nostr.Timestamp
	seen   map[string]nostr.Timestamp
}

var _ adapters.Adapter = (*Adapter)(nil)

func New(cfg Config) (*Adapter, error) {
	if len(cfg.Relays) == 0 {
		return nil, fmt.Errorf("no relays configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return newAdapter(&pool{urls: cfg.Relays, timeout: cfg.Timeout}, cfg.Wallet), nil
}

func newAdapter(c client, w Wallet) *Adapter {
	return &Adapter{
		client: c,
		wallet: w,
		since:  nostr.Timestamp(time.Now().Unix()),
		seen:   make(map[string]nostr.Timestamp),
	}
}

func (a *Adapter) Name() string { return "nostr" }

func (a *Adapter) AccountType() library.AccountType { return library.AccountNostr }

func (a *Adapter) DeliverChallenge(ctx context.Context, d adapters.Delivery) (string, error) {
	if !validPubKey(string(d.Account)) {
		return "", fmt.Errorf("%w: %q is not a hex public key", library.ErrInvalidMessage, d.Account)
	}
	e := nostr.Event{
		PubKey:    a.wallet.PublicKey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      1,
		Tags:      nostr.Tags{nostr.Tag{"p", string(d.Account)}},
		Content:   fmt.Sprintf(challengeTemplate, d.Address.Address, d.Challenge),
	}
	if err := e.Sign(a.wallet.PrivateKey); err != nil {
		return "", fmt.Errorf("sign challenge note: %w", err)
	}
	if err := a.client.Publish(ctx, e); err != nil {
		return "", err
	}
	return "", nil
}

// FetchMessages returns signed notes mentioning the registrar that were not seen before.
func (a *Adapter) FetchMessages(ctx context.Context) ([]adapters.ExternalMessage, error) {
	since := a.since
	events, err := a.client.Query(ctx, nostr.Filter{
		Kinds: []int{1},
		Tags:  nostr.TagMap{"p": []string{a.wallet.PublicKey}},
		Since: &since,
	})
	if err != nil {
		return nil, err
	}
	var out []adapters.ExternalMessage
	for _, e := range events {
		if _, ok := a.seen[e.ID]; ok || e.PubKey == a.wallet.PublicKey {
			continue
		}
		if ok, _ := e.CheckSignature(); !ok {
			continue
		}
		a.seen[e.ID] = e.CreatedAt
		if e.CreatedAt > a.since {
			a.since = e.CreatedAt
		}
		out = append(out, adapters.ExternalMessage{
			Origin:    library.AccountNostr,
			ID:        e.ID,
			Sender:    library.Account(e.PubKey),
			Body:      e.Content,
			Timestamp: time.Unix(int64(e.CreatedAt), 0),
		})
	}
	for id, ts := range a.seen {
		if ts < a.since {
			delete(a.seen, id)
		}
	}
	return out, nil
}

func validPubKey(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
