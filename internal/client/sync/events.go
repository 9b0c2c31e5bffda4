package sync

import "sync"

// EventType identifies the engine's progress events.
type EventType string

const (
	EventSyncStarted   EventType = "sync:started"
	EventSyncProgress  EventType = "sync:progress"
	EventSyncCompleted EventType = "sync:completed"
	EventSyncError     EventType = "sync:error"
	EventAuthRequired  EventType = "auth:required"
)

// Event is one entry in the engine's event stream. Step is set on progress
// events, Result on completion, Error on failure.
type Event struct {
	Type   EventType
	Step   string
	Result *Result
	Error  string
}

// Handler receives engine events. Handlers run synchronously on the sync
// goroutine and should return quickly.
type Handler func(Event)

type subscribers struct {
	mu   sync.Mutex
	subs map[int]Handler
	next int
}

// Subscribe registers a handler and returns its unsubscribe function.
func (e *Engine) Subscribe(h Handler) func() {
	e.subs.mu.Lock()
	defer e.subs.mu.Unlock()
	if e.subs.subs == nil {
		e.subs.subs = map[int]Handler{}
	}
	id := e.subs.next
	e.subs.next++
	e.subs.subs[id] = h
	return func() {
		e.subs.mu.Lock()
		defer e.subs.mu.Unlock()
		delete(e.subs.subs, id)
	}
}

func (e *Engine) emit(ev Event) {
	e.subs.mu.Lock()
	handlers := make([]Handler, 0, len(e.subs.subs))
	for _, h := range e.subs.subs {
		handlers = append(handlers, h)
	}
	e.subs.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
