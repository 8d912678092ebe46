package comms

import (
	"context"

	"github.com/sasha-s/go-deadlock"
	"registrar/engine/library"
)

// Mailbox is an unbounded FIFO of messages with any number of senders and one receiver.
// Send never blocks and never drops.
type Mailbox struct {
	mutex *deadlock.Mutex
	queue *library.Queue[Message]
	ready chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		mutex: &deadlock.Mutex{},
		queue: library.NewQueue[Message](64),
		ready: make(chan struct{}, 1),
	}
}

func (m *Mailbox) Send(msg Message) {
	m.mutex.Lock()
	m.queue.Push(msg)
	m.mutex.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// TryRecv returns the oldest message without waiting.
func (m *Mailbox) TryRecv() (Message, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Pop()
}

// Recv blocks until a message is available or ctx is done.
func (m *Mailbox) Recv(ctx context.Context) (Message, error) {
	for {
		if msg, ok := m.TryRecv(); ok {
			return msg, nil
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Ready fires at least once after every Send. A receiver selecting on it must drain with TryRecv.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

func (m *Mailbox) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}
