package connection

import (
	"github.com/rickgao/tcplink/internal/queue"
)

// strand runs posted tasks one at a time, in post order, on a single goroutine.
// State touched only from strand tasks needs no lock.
type strand struct {
	tasks *queue.Queue[func()]
	done  chan struct{}
}

func newStrand() *strand {
	s := &strand{
		tasks: queue.New[func()](8),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// post schedules task. Returns false if the strand has been stopped, in which
// case task will never run.
func (s *strand) post(task func()) bool {
	return s.tasks.Push(task)
}

// stop rejects new tasks. Tasks already queued still run.
func (s *strand) stop() {
	s.tasks.Close()
}

// Done is closed once the strand goroutine has exited.
func (s *strand) Done() <-chan struct{} {
	return s.done
}

func (s *strand) run() {
	defer close(s.done)
	for {
		task, ok := s.tasks.Pop()
		if !ok {
			return
		}
		task()
	}
}
