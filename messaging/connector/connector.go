// Package connector bridges the chain watcher's websocket to the bus. Judgement requests
// coming from the watcher become new pending identities, and judgements produced by the
// registry are written back as judgementResult envelopes.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"registrar/engine/library"
	"registrar/engine/metrics"
	"registrar/messaging/comms"
)

type ErrorKind int

const (
	InvalidMessage ErrorKind = iota + 1
	Response
	Receiver
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidMessage:
		return "invalid_message"
	case Response:
		return "response"
	case Receiver:
		return "receiver"
	}
	return "unknown"
}

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidMessage:
		return fmt.Sprintf("the received message is invalid: %s", e.Err)
	case Response:
		return fmt.Sprintf("failed to respond: %s", e.Err)
	default:
		return fmt.Sprintf("failed to fetch messages from the watcher: %s", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

type Config struct {
	URL    string
	Origin string
	// MaxBackoff caps the wait between reconnection attempts.
	MaxBackoff time.Duration
}

type readResult struct {
	frame frame
	err   error
}

type Connector struct {
	cfg     Config
	comms   *comms.Endpoint
	metrics *metrics.Metrics
	dial    func() (link, error)

	link      link
	frames    chan readResult
	stop      chan struct{}
	connected atomic.Bool

	backlog       []comms.JudgeIdentity
	receiverError bool
}

// New connects to the watcher and greets it with an ack.
func New(cfg Config, endpoint *comms.Endpoint, m *metrics.Metrics) (*Connector, error) {
	if cfg.Origin == "" {
		cfg.Origin = "http://localhost/"
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	c := &Connector{
		cfg:     cfg,
		comms:   endpoint,
		metrics: m,
	}
	c.dial = func() (link, error) { return dialWebsocket(c.cfg.URL, c.cfg.Origin) }
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connector) connect() error {
	l, err := c.dial()
	if err != nil {
		return fmt.Errorf("connect to watcher at %s: %w", c.cfg.URL, err)
	}
	c.attach(l)
	if err := c.sendAck(connectionEstablished); err != nil {
		c.detach()
		return err
	}
	return nil
}

func (c *Connector) attach(l link) {
	c.link = l
	c.frames = make(chan readResult)
	c.stop = make(chan struct{})
	c.connected.Store(true)
	go read(l, c.frames, c.stop)
}

func (c *Connector) detach() {
	if c.link == nil {
		return
	}
	close(c.stop)
	_ = c.link.close()
	c.link = nil
	c.connected.Store(false)
}

func read(l link, frames chan<- readResult, stop <-chan struct{}) {
	for {
		f, err := l.read()
		select {
		case frames <- readResult{frame: f, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

// Healthy reports whether the watcher link is currently up.
func (c *Connector) Healthy() error {
	if !c.connected.Load() {
		return library.ErrDisconnected
	}
	return nil
}

// Start serves the link until ctx is done. It only returns early on a fatal error.
func (c *Connector) Start(ctx context.Context) error {
	defer c.detach()
	for ctx.Err() == nil {
		err := c.local(ctx)
		if err == nil {
			continue
		}
		if library.IsFatal(err) {
			return err
		}
		c.surface(err)
		if kindOf(err) == Receiver {
			c.reconnect(ctx)
		}
	}
	return nil
}

// surface logs err unless it repeats a disconnect already reported. It reports whether err was logged.
func (c *Connector) surface(err error) bool {
	kind := kindOf(err)
	c.metrics.IncrementWatcherError(kind.String())
	if kind == Receiver {
		if c.receiverError {
			return false
		}
		c.receiverError = true
		library.LogCLI(fmt.Sprintf("Disconnected from watcher: %s", err), 1)
		return true
	}
	c.receiverError = false
	library.LogCLI(err.Error(), 2)
	return true
}

func (c *Connector) reconnect(ctx context.Context) {
	c.detach()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	err := backoff.RetryNotify(c.connect, backoff.WithContext(b, ctx), func(err error, _ time.Duration) {
		c.surface(&Error{Kind: Receiver, Err: err})
	})
	if err != nil {
		return
	}
	c.receiverError = false
	c.metrics.IncrementReconnect()
	library.LogCLI("Reconnected to watcher", 4)
	c.flushBacklog()
}

func (c *Connector) flushBacklog() {
	for len(c.backlog) > 0 {
		if err := c.sendJudgement(c.backlog[0]); err != nil {
			c.surface(err)
			return
		}
		c.backlog = c.backlog[1:]
	}
}

// local handles one event. Bus messages win over frames when both are ready.
func (c *Connector) local(ctx context.Context) error {
	if msg, ok := c.comms.TryRecv(); ok {
		return c.handleComms(msg)
	}
	select {
	case <-ctx.Done():
		return nil
	case <-c.comms.Ready():
		return nil
	case res := <-c.frames:
		var commsErr error
		if msg, ok := c.comms.TryRecv(); ok {
			commsErr = c.handleComms(msg)
			if library.IsFatal(commsErr) {
				return commsErr
			}
		}
		if err := c.handleFrame(res); err != nil {
			if commsErr != nil {
				c.surface(commsErr)
			}
			return err
		}
		return commsErr
	}
}

func (c *Connector) handleComms(msg comms.Message) error {
	j, ok := msg.(comms.JudgeIdentity)
	if !ok {
		return fmt.Errorf("%w: connector received unexpected %s message", library.ErrFatal, comms.Kind(msg))
	}
	if err := c.sendJudgement(j); err != nil {
		c.backlog = append(c.backlog, j)
		return err
	}
	return nil
}

func (c *Connector) handleFrame(res readResult) error {
	if res.err != nil {
		return &Error{Kind: Receiver, Err: res.err}
	}
	if !res.frame.text {
		return c.reject(fmt.Errorf("non-text frame"))
	}
	msg, err := parseMessage(res.frame.payload)
	if err != nil {
		return c.reject(err)
	}
	c.metrics.IncrementFrame("in", string(msg.Event))
	switch msg.Event {
	case EventNewJudgementRequest:
		var req JudgementRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return c.reject(err)
		}
		ident, err := req.Identity()
		if err != nil {
			return c.reject(err)
		}
		if err := c.sendAck(messageAcknowledged); err != nil {
			return err
		}
		library.LogCLI(fmt.Sprintf("Received judgement request for %s from watcher", ident.Address()), 4)
		c.comms.NotifyNewIdentity(ident)
		return nil
	case EventAck, EventError:
		library.LogCLI(fmt.Sprintf("watcher sent %s: %s", msg.Event, msg.Data), 3)
		return nil
	}
	return c.reject(fmt.Errorf("unexpected %s event from watcher", msg.Event))
}

// reject answers with the error envelope and reports the cause as an invalid message.
func (c *Connector) reject(cause error) error {
	if err := c.send(EventError, ErrorResponse{Error: messageRejected}); err != nil {
		return err
	}
	return &Error{Kind: InvalidMessage, Err: cause}
}

func (c *Connector) sendAck(text string) error {
	return c.send(EventAck, AckResponse{Result: text})
}

func (c *Connector) sendJudgement(j comms.JudgeIdentity) error {
	return c.send(EventJudgementResult, JudgementResponse{Address: j.Address.Address, Judgement: j.Judgement})
}

func (c *Connector) send(event EventType, data any) error {
	if c.link == nil {
		return &Error{Kind: Response, Err: library.ErrDisconnected}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return &Error{Kind: Response, Err: err}
	}
	b, err := json.Marshal(Message{Event: event, Data: raw})
	if err != nil {
		return &Error{Kind: Response, Err: err}
	}
	if err := c.link.write(append(b, '\n')); err != nil {
		return &Error{Kind: Response, Err: err}
	}
	c.metrics.IncrementFrame("out", string(event))
	return nil
}
