package publisher

import (
	"github.com/rickgao/tcplink/internal/model"
)

// Deliverer routes a published payload to every session subscribed to class.
// It returns how many sessions received it.
type Deliverer interface {
	DeliverEvent(class model.SubscriptionClass, payload []byte) int
}

// DelivererFunc is a function adapter for Deliverer.
type DelivererFunc func(model.SubscriptionClass, []byte) int

func (f DelivererFunc) DeliverEvent(class model.SubscriptionClass, payload []byte) int {
	return f(class, payload)
}
