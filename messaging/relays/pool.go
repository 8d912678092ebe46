// Package relays verifies nostr accounts: challenges go out as notes mentioning the claimant
// and proofs come back as notes mentioning the registrar.
package relays

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"registrar/engine/library"
)

type client interface {
	Publish(ctx context.Context, e nostr.Event) error
	Query(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error)
}

// pool talks to every relay in urls, connecting per call.
type pool struct {
	urls    []string
	timeout time.Duration
}

// Publish succeeds when at least one relay accepted the event.
func (p *pool) Publish(ctx context.Context, e nostr.Event) error {
	var mu = &deadlock.Mutex{}
	var wg = &deadlock.WaitGroup{}
	var accepted int
	var errs []error
	for _, url := range p.urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			err := p.publishTo(ctx, url, e)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("relay %s: %w", url, err))
				return
			}
			accepted++
		}(url)
	}
	wg.Wait()
	if accepted == 0 {
		return fmt.Errorf("no relay accepted event %s: %w", e.ID, errors.Join(errs...))
	}
	return nil
}

func (p *pool) publishTo(ctx context.Context, url string, e nostr.Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return err
	}
	defer relay.Close()
	_, err = relay.Publish(ctx, e)
	return err
}

// Query collects the stored events matching filter from every relay, deduplicated by id.
func (p *pool) Query(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error) {
	var mu = &deadlock.Mutex{}
	var wg = &deadlock.WaitGroup{}
	events := make(map[string]nostr.Event)
	var failed int
	for _, url := range p.urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			found, err := p.queryOne(ctx, url, filter)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				library.LogCLI(fmt.Sprintf("could not query relay %s: %s", url, err), 3)
				return
			}
			for _, ev := range found {
				events[ev.ID] = ev
			}
		}(url)
	}
	wg.Wait()
	if failed == len(p.urls) && failed > 0 {
		return nil, fmt.Errorf("every relay failed")
	}
	out := make([]nostr.Event, 0, len(events))
	for _, ev := range events {
		out = append(out, ev)
	}
	return out, nil
}

func (p *pool) queryOne(ctx context.Context, url string, filter nostr.Filter) ([]nostr.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, err
	}
	defer relay.Close()
	sub, err := relay.Subscribe(ctx, nostr.Filters{filter})
	if err != nil {
		return nil, err
	}
	defer sub.Unsub()
	var out []nostr.Event
L:
	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				break L
			}
			out = append(out, *ev)
		case <-sub.EndOfStoredEvents:
			break L
		case <-ctx.Done():
			break L
		}
	}
	return out, nil
}
