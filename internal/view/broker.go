package view

import "sync"

// subscriberBufferSize is the channel buffer for each snapshot subscriber.
// Snapshots are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 16

// Broker fans view snapshots out to subscribers, one topic per view.
// It is safe for concurrent use.
//
// A topic exists only while it has subscribers. Closing a topic drops it, so
// the broker holds nothing for views that are unmounted or never watched.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	subs   map[int]chan Snapshot
	nextID int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]*topic)}
}

// Subscribe returns a channel receiving snapshots for viewID and an
// unsubscribe function. The channel is closed by Close or by unsubscribing.
func (b *Broker) Subscribe(viewID string) (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[viewID]
	if !ok {
		t = &topic{subs: make(map[int]chan Snapshot)}
		b.topics[viewID] = t
	}

	ch := make(chan Snapshot, subscriberBufferSize)
	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		c, ok := t.subs[id]
		if !ok {
			return
		}
		delete(t.subs, id)
		close(c)
		if len(t.subs) == 0 && b.topics[viewID] == t {
			delete(b.topics, viewID)
		}
	}
}

// Publish delivers snap to every subscriber of its view. Full subscriber
// buffers drop the snapshot.
func (b *Broker) Publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[snap.ID]
	if !ok {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Close ends the topic for viewID, closing every subscriber channel.
func (b *Broker) Close(viewID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[viewID]
	if !ok {
		return
	}
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
	delete(b.topics, viewID)
}

// Topics returns the number of topics with live subscribers.
func (b *Broker) Topics() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
