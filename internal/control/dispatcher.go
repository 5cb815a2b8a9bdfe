package control

import (
	"sync"
	"unsafe"
)

// Dispatcher is a thread-safe fan-in multiplexer. Callers from any
// thread — an OS hotkey handler, a MIDI input thread, an HTTP worker, a
// WebSocket worker — call Dispatch; listeners that must run on the UI
// thread are responsible for re-posting internally.
type Dispatcher struct {
	mu        sync.Mutex
	listeners []ActionListener
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// AddListener registers l to receive future dispatched events.
func (d *Dispatcher) AddListener(l ActionListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// RemoveListener unregisters l. A no-op if l was never added.
func (d *Dispatcher) RemoveListener(l ActionListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.listeners {
		if sameActionListener(existing, l) {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

// sameActionListener reports whether a and b are the same listener.
// ActionListenerFunc values cannot be compared with ==, so they are
// matched by the identity of the func value they hold.
func sameActionListener(a, b ActionListener) bool {
	fa, aIsFunc := a.(ActionListenerFunc)
	fb, bIsFunc := b.(ActionListenerFunc)
	if aIsFunc || bIsFunc {
		return aIsFunc && bIsFunc && *(*unsafe.Pointer)(unsafe.Pointer(&fa)) == *(*unsafe.Pointer)(unsafe.Pointer(&fb))
	}
	return a == b
}

// Dispatch snapshots the listener list under a short mutex, then invokes
// each listener outside the lock so a listener that calls back into
// AddListener/RemoveListener cannot deadlock.
func (d *Dispatcher) Dispatch(event ActionEvent) {
	d.mu.Lock()
	snapshot := make([]ActionListener, len(d.listeners))
	copy(snapshot, d.listeners)
	d.mu.Unlock()

	for _, l := range snapshot {
		l.OnAction(event)
	}
}
