package fleet

import (
	"sync/atomic"
)

// Subscription is one client's view of the hub. The first event on Events is
// always a snapshot.
type Subscription struct {
	id      uint64
	ch      chan Event
	hub     *Hub
	dropped atomic.Uint64
}

// Subscribe registers a subscriber and queues the current snapshot as its
// first event.
func (h *Hub) Subscribe() (*Subscription, error) {
	// Holding the registry read lock while registering means no mutation can
	// land between the snapshot and the subscriber becoming visible to publish.
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextSub++
	s := &Subscription{
		id:  h.nextSub,
		ch:  make(chan Event, h.opts.SubscriberBuffer+1),
		hub: h,
	}
	s.ch <- Event{
		Type:     EventSnapshot,
		Seq:      h.seq.Load(),
		At:       h.opts.Now(),
		Vehicles: h.vehiclesLocked(),
		Tickets:  h.ticketsLocked(),
	}
	h.subs[s.id] = s

	if h.opts.Metrics != nil {
		h.opts.Metrics.HubSubscribers(len(h.subs))
	}
	return s, nil
}

// Events returns the event channel. It is closed when the subscription or
// the hub is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many deltas this subscriber missed.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	close(s.ch)
	if h.opts.Metrics != nil {
		h.opts.Metrics.HubSubscribers(len(h.subs))
	}
}

// publish fans a delta out without blocking on slow subscribers.
func (h *Hub) publish(evt Event) {
	evt.Seq = h.seq.Add(1)
	evt.At = h.opts.Now()

	h.subMu.RLock()
	for _, s := range h.subs {
		select {
		case s.ch <- evt:
			if h.opts.Metrics != nil {
				h.opts.Metrics.HubDeltaPublished()
			}
		default:
			s.dropped.Add(1)
			if h.opts.Metrics != nil {
				h.opts.Metrics.HubDeltaDropped()
			}
		}
	}
	h.subMu.RUnlock()

	if h.opts.Relay != nil {
		h.opts.Relay.Relay(evt)
	}
}
