package app

import "sync"

type EventType string

const (
	EventProjectChanged      EventType = "projectChanged"
	EventChaptersChanged     EventType = "chaptersChanged"
	EventDirtyChanged        EventType = "dirtyChanged"
	EventStylesChanged       EventType = "stylesChanged"
	EventPageSettingsChanged EventType = "pageSettingsChanged"
	EventLexiconChanged      EventType = "lexiconChanged"
)

// Event notifies subscribers that a slice of session state changed. The
// payload carries identifiers only; subscribers re-read state through the
// service, which keeps transitions atomic from their point of view.
type Event struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"projectId,omitempty"`
	ChapterID int       `json:"chapterId,omitempty"`
	Dirty     bool      `json:"dirty,omitempty"`
}

type eventBus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel function. The
// channel is buffered; a subscriber that stops draining loses events
// rather than blocking publishers.
func (b *eventBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *eventBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
