package connection

import (
	"github.com/rickgao/tcplink/internal/model"
	"github.com/rickgao/tcplink/internal/queue"
)

// Inbox buffers published events for one session until the next dispatch.
// It has its own lock, so ingestion never contends on the registry lock.
type Inbox struct {
	events *queue.Queue[model.Event]
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{events: queue.New[model.Event](16)}
}

// Push appends an event.
func (b *Inbox) Push(ev model.Event) {
	b.events.Push(ev)
}

// Drain returns every buffered event and empties the inbox in one step.
func (b *Inbox) Drain() []model.Event {
	return b.events.Drain()
}

// Len returns the number of buffered events.
func (b *Inbox) Len() int {
	return b.events.Len()
}
