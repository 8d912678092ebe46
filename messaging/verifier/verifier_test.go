package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"registrar/engine/database"
	"registrar/engine/library"
	"registrar/messaging/adapters"
	"registrar/messaging/comms"
	"registrar/state/identity"
)

// wired runs a real registry and verifier on one bus, with a matrix collaborator
// and the watcher side played by the test.
type wired struct {
	bus       *comms.Bus
	matrix    *comms.Endpoint
	connector *comms.Endpoint
	verifier  *Verifier
	done      chan error
}

func wire(t *testing.T) *wired {
	t.Helper()
	w := &wired{bus: comms.New(), done: make(chan error, 2)}
	var err error
	w.matrix, err = w.bus.Register(library.AccountMatrix)
	require.NoError(t, err)
	w.connector, err = w.bus.Register(library.ReservedConnector)
	require.NoError(t, err)
	emitter, err := w.bus.Register(library.ReservedEmitter)
	require.NoError(t, err)
	reg, err := identity.New(context.Background(), database.NewMemory(), w.bus)
	require.NoError(t, err)
	w.verifier = New(emitter, 8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { w.done <- reg.Run(ctx) }()
	go func() { w.done <- w.verifier.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		for i := 0; i < 2; i++ {
			require.NoError(t, <-w.done)
		}
	})
	return w
}

func recv(t *testing.T, ep *comms.Endpoint) comms.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := ep.Recv(ctx)
	require.NoError(t, err)
	return msg
}

func (w *wired) register(t *testing.T) comms.NotifyAccountVerification {
	t.Helper()
	w.matrix.NotifyNewIdentity(library.OnChainIdentity{
		NetworkAddress: library.NetworkAddress{Address: "A"},
		Matrix:         library.NewAccountState("@alice:matrix.org", library.AccountMatrix),
	})
	return recv(t, w.matrix).(comms.NotifyAccountVerification)
}

func TestMessageWithChallengeLeadsToJudgement(t *testing.T) {
	w := wire(t)
	delivery := w.register(t)

	require.NoError(t, w.verifier.Submit(context.Background(), adapters.ExternalMessage{
		Origin: library.AccountMatrix,
		Sender: "@alice:matrix.org",
		Body:   "here you go: " + delivery.Challenge.String(),
	}))
	assert.Equal(t, comms.JudgeIdentity{Address: delivery.Address, Judgement: library.JudgementReasonable}, recv(t, w.connector))
}

func TestWrongChallengeIsNotAccepted(t *testing.T) {
	w := wire(t)
	w.register(t)
	require.NoError(t, w.verifier.Submit(context.Background(), adapters.ExternalMessage{
		Origin: library.AccountMatrix,
		Sender: "@alice:matrix.org",
		Body:   "hello",
	}))
	require.NoError(t, w.verifier.Submit(context.Background(), adapters.ExternalMessage{
		Origin: library.AccountMatrix,
		Sender: "@mallory:matrix.org",
		Body:   "hello",
	}))
	time.Sleep(50 * time.Millisecond)
	_, ok := w.connector.TryRecv()
	assert.False(t, ok)
}

func TestStaleRepliesAreSkipped(t *testing.T) {
	bus := comms.New()
	ep, err := bus.Register(library.ReservedEmitter)
	require.NoError(t, err)
	out, err := bus.Outbox(library.ReservedEmitter)
	require.NoError(t, err)
	v := New(ep, 1, nil)

	out.InvalidRequest("@someone-else:matrix.org", library.AccountMatrix)
	out.NotifyAccountVerification(library.NetworkAddress{Address: "A"}, &library.AccountState{
		Account: "@alice:matrix.org", AccountType: library.AccountMatrix, Challenge: "abc",
	}, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, v.verify(ctx, adapters.ExternalMessage{Origin: library.AccountMatrix, Sender: "@alice:matrix.org", Body: "abc"}))

	msg, err := bus.Inbound().Recv(ctx)
	require.NoError(t, err)
	assert.IsType(t, comms.RequestAccountState{}, msg)
	msg, err = bus.Inbound().Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, comms.UpdateChallengeStatus{Address: library.NetworkAddress{Address: "A"}, AccountType: library.AccountMatrix, Challenge: "abc", Status: library.ChallengeAccepted}, msg)
}

func TestUnexpectedReplyIsFatal(t *testing.T) {
	bus := comms.New()
	ep, err := bus.Register(library.ReservedEmitter)
	require.NoError(t, err)
	out, err := bus.Outbox(library.ReservedEmitter)
	require.NoError(t, err)
	out.JudgeIdentity(library.NetworkAddress{Address: "A"}, library.JudgementReasonable)
	err = New(ep, 1, nil).verify(context.Background(), adapters.ExternalMessage{Origin: library.AccountMatrix, Sender: "x"})
	assert.True(t, library.IsFatal(err))
}
