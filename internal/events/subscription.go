package events

import "sync"

// Subscription delivers matching events in publish order on Events().
// Release stops delivery; once it returns the channel is closed and the
// subscription's goroutine has exited.
type Subscription struct {
	id    uint64
	scope Scope
	bus   *Bus

	out chan ChangeEvent

	mu     sync.Mutex
	queue  []ChangeEvent
	notify chan struct{}

	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func newSubscription(id uint64, scope Scope, bus *Bus) *Subscription {
	return &Subscription{
		id:     id,
		scope:  scope,
		bus:    bus,
		out:    make(chan ChangeEvent),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (s *Subscription) Scope() Scope {
	return s.scope
}

func (s *Subscription) Events() <-chan ChangeEvent {
	return s.out
}

func (s *Subscription) Release() {
	s.once.Do(func() {
		s.bus.remove(s.id)
		close(s.done)
		<-s.exited

		s.mu.Lock()
		s.queue = nil
		s.mu.Unlock()
	})
}

// Pending reports how many events are queued but not yet received.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Subscription) enqueue(ev ChangeEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.exited)
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = ChangeEvent{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
