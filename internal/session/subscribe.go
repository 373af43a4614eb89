package session

import (
	"sync"
	"sync/atomic"

	"github.com/ppiankov/catalogspectre/internal/models"
)

// subscriber delivers events to one callback in publish order. Events are
// queued without limit: a dropped patch would leave the display wrong.
type subscriber struct {
	id     int
	fn     func(models.Event)
	mu     sync.Mutex
	queue  []models.Event
	signal chan struct{}
	done   chan struct{}
	exited chan struct{}
	closed atomic.Bool
}

func newSubscriber(id int, fn func(models.Event)) *subscriber {
	sub := &subscriber{
		id:     id,
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go sub.run()
	return sub
}

func (s *subscriber) push(event models.Event) {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			event, ok := s.next()
			if !ok {
				break
			}
			s.fn(event)
		}
	}
}

func (s *subscriber) next() (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 || s.closed.Load() {
		return models.Event{}, false
	}
	event := s.queue[0]
	s.queue[0] = models.Event{}
	s.queue = s.queue[1:]
	return event, true
}

func (s *subscriber) close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.done)
	}
}
