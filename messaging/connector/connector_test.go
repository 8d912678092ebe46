package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
	"registrar/engine/library"
	"registrar/messaging/comms"
)

type watcher struct {
	url   string
	conns chan *websocket.Conn
}

// newWatcher starts a websocket server standing in for the chain watcher.
func newWatcher(t *testing.T) *watcher {
	t.Helper()
	w := &watcher{conns: make(chan *websocket.Conn, 4)}
	release := make(chan struct{})
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		w.conns <- conn
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	w.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return w
}

func (w *watcher) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-w.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("bridge never connected")
		return nil
	}
}

func receive(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var raw string
	require.NoError(t, websocket.Message.Receive(conn, &raw))
	require.True(t, strings.HasSuffix(raw, "\n"), "envelopes are newline terminated")
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	return msg
}

func requireAck(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	msg := receive(t, conn)
	require.Equal(t, EventAck, msg.Event)
	var ack AckResponse
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	require.Equal(t, text, ack.Result)
}

func requireRejected(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	msg := receive(t, conn)
	require.Equal(t, EventError, msg.Event)
	require.JSONEq(t, `{"error":"Message is invalid. Rejected"}`, string(msg.Data))
}

func validAddress(t *testing.T) library.NetAccount {
	t.Helper()
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i + 1)
	}
	addr, err := library.EncodeAddress(42, pub)
	require.NoError(t, err)
	return addr
}

type harness struct {
	bus       *comms.Bus
	watcher   *watcher
	conn      *websocket.Conn
	connector *Connector
	done      chan error
	cancel    context.CancelFunc
}

func start(t *testing.T) *harness {
	t.Helper()
	h := &harness{bus: comms.New(), watcher: newWatcher(t), done: make(chan error, 1)}
	ep, err := h.bus.Register(library.ReservedConnector)
	require.NoError(t, err)
	h.connector, err = New(Config{URL: h.watcher.url, MaxBackoff: 200 * time.Millisecond}, ep, nil)
	require.NoError(t, err)
	h.conn = h.watcher.accept(t)
	requireAck(t, h.conn, "Connection established")

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.connector.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("connector did not stop")
		}
	})
	return h
}

func (h *harness) inbound(t *testing.T) comms.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := h.bus.Inbound().Recv(ctx)
	require.NoError(t, err)
	return msg
}

func TestJudgementRequestBecomesPendingIdentity(t *testing.T) {
	h := start(t)
	addr := validAddress(t)
	req := `{"event":"newJudgementRequest","data":{"address":"` + string(addr) + `","accounts":{"display_name":"Alice","riot":"@alice:matrix.org","email":"alice@example.org"}}}`
	require.NoError(t, websocket.Message.Send(h.conn, req))

	requireAck(t, h.conn, "Message acknowledged")
	msg := h.inbound(t).(comms.NewJudgementRequest)
	ident := msg.Identity
	assert.Equal(t, addr, ident.Address())
	assert.Equal(t, "Alice", *ident.DisplayName)
	require.NotNil(t, ident.Matrix)
	assert.Equal(t, library.Account("@alice:matrix.org"), ident.Matrix.Account)
	assert.Equal(t, library.AccountMatrix, ident.Matrix.AccountType)
	assert.Equal(t, library.ChallengeUnconfirmed, ident.Matrix.ChallengeStatus)
	require.NotNil(t, ident.Email)
	assert.NotEqual(t, ident.Email.Challenge, ident.Matrix.Challenge)
	assert.Nil(t, ident.Twitter)
}

func TestMalformedInputIsRejectedAndBridgeSurvives(t *testing.T) {
	h := start(t)
	for _, bad := range []string{
		`not json`,
		`{"event":"somethingElse","data":{}}`,
		`{"event":"newJudgementRequest","data":{"address":"A","accounts":{}}}`,
		`{"event":"newJudgementRequest","data":"nope"}`,
		`{"event":"judgementResult","data":{}}`,
	} {
		require.NoError(t, websocket.Message.Send(h.conn, bad))
		requireRejected(t, h.conn)
	}
	require.NoError(t, websocket.Message.Send(h.conn, []byte{0x01, 0x02}))
	requireRejected(t, h.conn)

	req := `{"event":"newJudgementRequest","data":{"address":"` + string(validAddress(t)) + `","accounts":{}}}`
	require.NoError(t, websocket.Message.Send(h.conn, req))
	requireAck(t, h.conn, "Message acknowledged")
	_, ok := h.inbound(t).(comms.NewJudgementRequest)
	assert.True(t, ok)
}

func TestWatcherAcksAreNotAnswered(t *testing.T) {
	h := start(t)
	require.NoError(t, websocket.Message.Send(h.conn, `{"event":"ack","data":{"result":"ok"}}`))
	out, err := h.bus.Outbox(library.ReservedConnector)
	require.NoError(t, err)
	out.JudgeIdentity(library.NetworkAddress{Address: "A"}, library.JudgementReasonable)
	msg := receive(t, h.conn)
	assert.Equal(t, EventJudgementResult, msg.Event, "the ack produced no reply of its own")
}

func TestJudgementIsSentToWatcher(t *testing.T) {
	h := start(t)
	out, err := h.bus.Outbox(library.ReservedConnector)
	require.NoError(t, err)
	out.JudgeIdentity(library.NetworkAddress{Address: "A"}, library.JudgementReasonable)

	msg := receive(t, h.conn)
	assert.Equal(t, EventJudgementResult, msg.Event)
	assert.JSONEq(t, `{"address":"A","judgement":"reasonable"}`, string(msg.Data))
}

func TestReconnectsAfterDisconnect(t *testing.T) {
	h := start(t)
	require.NoError(t, h.conn.Close())

	conn := h.watcher.accept(t)
	requireAck(t, conn, "Connection established")
	require.Eventually(t, func() bool { return h.connector.Healthy() == nil }, 5*time.Second, 10*time.Millisecond)

	out, err := h.bus.Outbox(library.ReservedConnector)
	require.NoError(t, err)
	out.JudgeIdentity(library.NetworkAddress{Address: "B"}, library.JudgementReasonable)
	msg := receive(t, conn)
	assert.JSONEq(t, `{"address":"B","judgement":"reasonable"}`, string(msg.Data))
}

func TestUnexpectedBusMessageIsFatal(t *testing.T) {
	h := start(t)
	out, err := h.bus.Outbox(library.ReservedConnector)
	require.NoError(t, err)
	out.InvalidRequest("x", library.AccountMatrix)
	select {
	case err := <-h.done:
		assert.True(t, library.IsFatal(err))
		h.done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("connector kept running")
	}
}

func TestDisconnectIsReportedOncePerEpisode(t *testing.T) {
	c := &Connector{}
	down := &Error{Kind: Receiver, Err: errors.New("connection reset")}
	assert.True(t, c.surface(down))
	assert.False(t, c.surface(down))
	assert.False(t, c.surface(down))
	assert.True(t, c.surface(&Error{Kind: InvalidMessage, Err: errors.New("bad json")}))
	assert.True(t, c.surface(down), "a distinct error ends the episode")
}

func TestUnknownEventFailsToParse(t *testing.T) {
	_, err := parseMessage([]byte(`{"event":"hello","data":{}}`))
	assert.Error(t, err)
	msg, err := parseMessage([]byte(`{"event":"ack","data":{"result":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventAck, msg.Event)
}

type recordingLink struct {
	written [][]byte
	closed  chan struct{}
}

func (l *recordingLink) read() (frame, error) {
	<-l.closed
	return frame{}, errors.New("closed")
}

func (l *recordingLink) write(payload []byte) error {
	l.written = append(l.written, payload)
	return nil
}

func (l *recordingLink) close() error {
	close(l.closed)
	return nil
}

func TestJudgementsWrittenWhileDownAreFlushedFirst(t *testing.T) {
	c := &Connector{}
	err := c.handleComms(comms.JudgeIdentity{Address: library.NetworkAddress{Address: "A"}, Judgement: library.JudgementReasonable})
	require.Error(t, err)
	assert.Equal(t, Response, kindOf(err))
	require.Len(t, c.backlog, 1)

	l := &recordingLink{closed: make(chan struct{})}
	c.attach(l)
	defer c.detach()
	c.flushBacklog()
	assert.Empty(t, c.backlog)
	require.Len(t, l.written, 1)
	var msg Message
	require.NoError(t, json.Unmarshal(l.written[0], &msg))
	assert.Equal(t, EventJudgementResult, msg.Event)
	assert.JSONEq(t, `{"address":"A","judgement":"reasonable"}`, string(msg.Data))
}

func TestBusJudgementIsWrittenBeforeReadyFrame(t *testing.T) {
	bus := comms.New()
	ep, err := bus.Register(library.ReservedConnector)
	require.NoError(t, err)
	c := &Connector{comms: ep}
	l := &recordingLink{closed: make(chan struct{})}
	c.attach(l)
	defer c.detach()

	frames := make(chan readResult, 1)
	frames <- readResult{frame: frame{text: true, payload: []byte(`not json`)}}
	c.frames = frames
	out, err := bus.Outbox(library.ReservedConnector)
	require.NoError(t, err)
	out.JudgeIdentity(library.NetworkAddress{Address: "A"}, library.JudgementReasonable)

	ctx := context.Background()
	require.NoError(t, c.local(ctx))
	err = c.local(ctx)
	assert.Equal(t, InvalidMessage, kindOf(err))

	require.Len(t, l.written, 2)
	var first, second Message
	require.NoError(t, json.Unmarshal(l.written[0], &first))
	require.NoError(t, json.Unmarshal(l.written[1], &second))
	assert.Equal(t, EventJudgementResult, first.Event)
	assert.Equal(t, EventError, second.Event)
}
