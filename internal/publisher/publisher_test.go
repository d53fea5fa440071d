package publisher

import (
	"sync"

	"github.com/rickgao/tcplink/internal/model"
)

type delivered struct {
	class   model.SubscriptionClass
	payload string
}

// recordingDeliverer remembers every delivery and claims one session each.
type recordingDeliverer struct {
	mu  sync.Mutex
	got  []delivered
}

func (d *recordingDeliverer) DeliverEvent(class model.SubscriptionClass, payload []byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, delivered{class, string(payload)})
	return 1
}

func (d *recordingDeliverer) Delivered() []delivered {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivered(nil), d.got...)
}
