// Package observable implements named events with ordered listener dispatch.
//
// An Observable owns a set of lazily created events. Each event keeps its own
// listener list, suspension flag and result aggregation Mode. Dispatch is
// synchronous and works on a snapshot of the listener list, so listeners may
// subscribe or unsubscribe (themselves or others) while an event is firing.
//
// Hosts expose events by composition: they hold an *Observable and forward the
// methods they want to publish.
package observable

import "strings"

// Observable is a registry of named events. The zero value is ready to use.
type Observable struct {
	events map[string]*Event
}

// New constructs an empty Observable.
func New() *Observable {
	return &Observable{events: map[string]*Event{}}
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}

func (o *Observable) ensure() {
	if o.events == nil {
		o.events = map[string]*Event{}
	}
}

// CreateEvent registers name with the supplied aggregation mode. An existing
// event is returned unchanged, so the mode must be set before the first On.
func (o *Observable) CreateEvent(name string, mode Mode) *Event {
	o.ensure()
	name = normalizeName(name)
	if evt, ok := o.events[name]; ok {
		return evt
	}
	evt := newEvent(name, mode)
	o.events[name] = evt
	return evt
}

// Event returns the event registered for name.
func (o *Observable) Event(name string) (*Event, bool) {
	if o == nil || o.events == nil {
		return nil, false
	}
	evt, ok := o.events[normalizeName(name)]
	return evt, ok
}

// On subscribes fn to name, creating a ModeDefault event when needed. It
// returns the listener id, or 0 when the registration was a duplicate.
func (o *Observable) On(name string, fn Listener, scope any, options ...ListenerOptions) int {
	evt := o.CreateEvent(name, ModeDefault)
	return evt.On(fn, scope, firstOptions(options))
}

// Once is On with Limit forced to 1.
func (o *Observable) Once(name string, fn Listener, scope any, options ...ListenerOptions) int {
	opts := firstOptions(options)
	opts.Limit = 1
	return o.On(name, fn, scope, opts)
}

// Un removes the listener resolved from scope, or from fn when scope is nil.
func (o *Observable) Un(name string, fn Listener, scope any) bool {
	evt, ok := o.Event(name)
	if !ok {
		return false
	}
	return evt.Un(fn, scope)
}

// UnByID removes a listener by the id returned from On.
func (o *Observable) UnByID(name string, id int) bool {
	evt, ok := o.Event(name)
	if !ok {
		return false
	}
	return evt.UnByID(id)
}

// HasListener reports whether fn/scope is subscribed to name.
func (o *Observable) HasListener(name string, fn Listener, scope any) bool {
	evt, ok := o.Event(name)
	if !ok {
		return false
	}
	return evt.HasListener(fn, scope)
}

// HasListeners reports whether name has any subscribers.
func (o *Observable) HasListeners(name string) bool {
	evt, ok := o.Event(name)
	if !ok {
		return false
	}
	return evt.Len() > 0
}

// RemoveAllListeners drops every listener of name.
func (o *Observable) RemoveAllListeners(name string) {
	if evt, ok := o.Event(name); ok {
		evt.RemoveAllListeners()
	}
}

// Trigger fires name with args. Unknown, suspended or empty events return nil.
func (o *Observable) Trigger(name string, args ...any) any {
	evt, ok := o.Event(name)
	if !ok {
		return nil
	}
	return evt.Trigger(args...)
}

// SuspendEvent stops name from dispatching until ResumeEvent.
func (o *Observable) SuspendEvent(name string) {
	if evt, ok := o.Event(name); ok {
		evt.Suspend()
	}
}

// ResumeEvent re-enables dispatch for name. Triggers issued while suspended
// are not replayed.
func (o *Observable) ResumeEvent(name string) {
	if evt, ok := o.Event(name); ok {
		evt.Resume()
	}
}

// SuspendAll suspends every known event.
func (o *Observable) SuspendAll() {
	if o == nil {
		return
	}
	for _, evt := range o.events {
		evt.Suspend()
	}
}

// ResumeAll resumes every known event.
func (o *Observable) ResumeAll() {
	if o == nil {
		return
	}
	for _, evt := range o.events {
		evt.Resume()
	}
}

// DestroyEvent removes name and all of its listeners.
func (o *Observable) DestroyEvent(name string) {
	if o == nil || o.events == nil {
		return
	}
	name = normalizeName(name)
	if evt, ok := o.events[name]; ok {
		evt.destroy()
		delete(o.events, name)
	}
}

// Destroy removes every event.
func (o *Observable) Destroy() {
	if o == nil {
		return
	}
	for _, evt := range o.events {
		evt.destroy()
	}
	o.events = map[string]*Event{}
}

func firstOptions(options []ListenerOptions) ListenerOptions {
	if len(options) == 0 {
		return ListenerOptions{}
	}
	return options[0]
}
