// Package preset applies a declarative target plugin chain to a live
// graph, choosing between an in-place fast path and a full async rebuild.
package preset

import (
	"github.com/directpipe/host/internal/notify"
	"github.com/directpipe/host/internal/plugin"
)

// Target is one entry of a declarative chain to apply.
type Target struct {
	Descriptor plugin.Descriptor
	Bypassed   bool
	StateBlob  []byte
	HasState   bool
}

// Applier applies Target chains to a plugin.Graph, preferring the fast
// path (update bypass/state in place) whenever the current chain already
// matches the target by descriptor identity.
type Applier struct {
	graph *plugin.Graph
	notif *notify.Queue
}

// New returns an Applier operating on graph, surfacing failures to notif.
func New(graph *plugin.Graph, notif *notify.Queue) *Applier {
	return &Applier{graph: graph, notif: notif}
}

// Apply applies targets to the graph. onDone, if non-nil, is invoked with
// any per-plugin load failures once the chain is settled; on the fast
// path it is called synchronously with a nil slice.
func (a *Applier) Apply(targets []Target, onDone func(failures []error)) {
	current := a.graph.Slots()

	if sameIdentity(current, targets) {
		a.applyFastPath(targets)
		if onDone != nil {
			onDone(nil)
		}
		return
	}

	requests := make([]plugin.ReplaceRequest, len(targets))
	for i, t := range targets {
		requests[i] = plugin.ReplaceRequest{
			Descriptor: t.Descriptor,
			Bypassed:   t.Bypassed,
			StateBlob:  t.StateBlob,
			HasState:   t.HasState,
		}
	}

	a.graph.ReplaceAllAsync(requests, func(failures []error) {
		for _, err := range failures {
			a.pushNotification(err.Error())
		}
		if onDone != nil {
			onDone(failures)
		}
	})
}

// applyFastPath updates bypass flags and state blobs on the existing
// chain without reloading any plugin, bracketed by a suspend/resume so
// the RT thread never observes a partial update.
func (a *Applier) applyFastPath(targets []Target) {
	a.graph.Suspend(true)
	defer a.graph.Suspend(false)

	for i, t := range targets {
		a.graph.SetBypassed(i, t.Bypassed)
		if t.HasState {
			if err := a.graph.SetSlotStateBlob(i, t.StateBlob); err != nil {
				a.pushNotification(err.Error())
			}
		}
	}
}

func (a *Applier) pushNotification(message string) {
	if a.notif != nil {
		a.notif.Push(notify.Notification{Message: message, Level: notify.Error})
	}
}

// sameIdentity reports whether current and targets match element-wise by
// descriptor identity (unique_id + file_or_identifier) in the same order.
func sameIdentity(current []plugin.Slot, targets []Target) bool {
	if len(current) != len(targets) {
		return false
	}
	for i, slot := range current {
		if !slot.Descriptor.SameIdentity(targets[i].Descriptor) {
			return false
		}
	}
	return true
}
