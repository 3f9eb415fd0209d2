package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01
	// Keyboard key pressed. Data is a *KeyEvent.
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02
	// Keyboard key released. Data is a *KeyEvent.
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03
	// Resized/resolution changed from the OS. Data is a *ResizeEvent.
	EVENT_CODE_RESIZED SystemEventCode = 0x08
	// A watched asset changed on disk. Data is a *AssetEvent.
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode int
}

type ResizeEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AssetEvent struct {
	Path    string
	Removed bool
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

// EventBus collects events from any goroutine and hands them to listeners
// on the goroutine that calls Dispatch.
type EventBus struct {
	mu         sync.Mutex
	registered map[SystemEventCode][]FnOnEvent
	pending    []EventContext
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]FnOnEvent),
	}
}

// Register adds a listener for the given code. Listeners run in
// registration order until one reports the event as handled.
func (b *EventBus) Register(code SystemEventCode, onEvent FnOnEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered[code] = append(b.registered[code], onEvent)
}

// Fire queues the event. It is safe to call from any goroutine.
func (b *EventBus) Fire(context EventContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, context)
}

// Dispatch delivers every queued event and returns how many were handled.
func (b *EventBus) Dispatch() int {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	handled := 0
	for _, e := range pending {
		b.mu.Lock()
		listeners := append([]FnOnEvent(nil), b.registered[e.Type]...)
		b.mu.Unlock()
		for _, l := range listeners {
			if l(e) {
				handled++
				break
			}
		}
	}
	return handled
}
