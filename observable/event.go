package observable

import (
	"fmt"
	"reflect"
	"slices"
)

// Mode controls how listener return values are aggregated by Trigger.
type Mode int

const (
	// ModeDefault returns nil unless a listener returns false, which stops
	// dispatch and makes Trigger return false.
	ModeDefault Mode = iota
	// ModeAll collects every listener result in call order.
	ModeAll
	// ModeFirst invokes only the head listener and returns its result.
	ModeFirst
	// ModeLast returns the result of the last invoked listener.
	ModeLast
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeFirst:
		return "first"
	case ModeLast:
		return "last"
	default:
		return "default"
	}
}

// ParseMode converts "all", "first" or "last" into a Mode. Anything else maps
// to ModeDefault.
func ParseMode(value string) Mode {
	switch normalizeName(value) {
	case "all":
		return ModeAll
	case "first":
		return ModeFirst
	case "last":
		return ModeLast
	default:
		return ModeDefault
	}
}

// Listener receives the trigger arguments, wrapped by any Prepend/Append
// values configured at subscription time.
type Listener func(args ...any) any

// ListenerOptions configures one subscription. The struct is copied on
// registration.
type ListenerOptions struct {
	// First puts the listener at the head of the call order.
	First bool
	// Limit unsubscribes the listener after this many calls. 0 is unlimited.
	Limit int
	// Start skips trigger attempts until the Start-th one. 0 and 1 both mean
	// the first attempt fires.
	Start int
	// Prepend values are passed before the trigger arguments.
	Prepend []any
	// Append values are passed after the trigger arguments.
	Append []any
	// AllowDupes permits the same fn/scope identity to subscribe again.
	AllowDupes bool
}

type listener struct {
	fn       Listener
	scope    any
	identity any
	id       int
	called   int
	count    int
	limit    int
	start    int
	prepend  []any
	append   []any
}

func (l *listener) arguments(args []any) []any {
	if len(l.prepend) == 0 && len(l.append) == 0 {
		return args
	}
	out := make([]any, 0, len(l.prepend)+len(args)+len(l.append))
	out = append(out, l.prepend...)
	out = append(out, args...)
	out = append(out, l.append...)
	return out
}

// Event is a single named listener list. Events are created through an
// Observable.
type Event struct {
	name       string
	mode       Mode
	listeners  []*listener
	byID       map[int]*listener
	identities map[any]int
	suspended  bool
	lastID     int
}

func newEvent(name string, mode Mode) *Event {
	return &Event{
		name:       name,
		mode:       mode,
		byID:       map[int]*listener{},
		identities: map[any]int{},
	}
}

// Name returns the normalized event name.
func (e *Event) Name() string { return e.name }

// Mode returns the aggregation mode.
func (e *Event) Mode() Mode { return e.mode }

// Len returns the number of subscribed listeners.
func (e *Event) Len() int { return len(e.listeners) }

// Suspended reports whether dispatch is currently suspended.
func (e *Event) Suspended() bool { return e.suspended }

// On subscribes fn. It returns 0 when fn is nil or when the identity derived
// from scope (or fn) is already subscribed and AllowDupes is not set.
func (e *Event) On(fn Listener, scope any, options ListenerOptions) int {
	if fn == nil {
		return 0
	}
	identity := identityOf(fn, scope)
	if _, exists := e.identities[identity]; exists && !options.AllowDupes {
		return 0
	}

	e.lastID++
	start := options.Start
	if start < 1 {
		start = 1
	}
	l := &listener{
		fn:       fn,
		scope:    scope,
		identity: identity,
		id:       e.lastID,
		limit:    options.Limit,
		start:    start,
		prepend:  slices.Clone(options.Prepend),
		append:   slices.Clone(options.Append),
	}
	e.identities[identity] = l.id

	if options.First {
		e.listeners = append([]*listener{l}, e.listeners...)
	} else {
		e.listeners = append(e.listeners, l)
	}
	e.byID[l.id] = l
	return l.id
}

// Un removes the listener registered for scope, or for fn when scope is nil.
func (e *Event) Un(fn Listener, scope any) bool {
	if fn == nil && scope == nil {
		return false
	}
	id, ok := e.identities[identityOf(fn, scope)]
	if !ok {
		return false
	}
	return e.UnByID(id)
}

// UnByID removes the listener with id.
func (e *Event) UnByID(id int) bool {
	l, ok := e.byID[id]
	if !ok {
		return false
	}
	idx := slices.Index(e.listeners, l)
	if idx == -1 {
		return false
	}
	e.listeners = slices.Delete(e.listeners, idx, idx+1)
	delete(e.byID, id)
	if e.identities[l.identity] == id {
		delete(e.identities, l.identity)
	}
	return true
}

// HasListener reports whether fn/scope is subscribed. With both nil it
// reports whether any listener is subscribed.
func (e *Event) HasListener(fn Listener, scope any) bool {
	if fn == nil && scope == nil {
		return len(e.listeners) > 0
	}
	id, ok := e.identities[identityOf(fn, scope)]
	if !ok {
		return false
	}
	_, ok = e.byID[id]
	return ok
}

// RemoveAllListeners drops every subscription.
func (e *Event) RemoveAllListeners() {
	e.listeners = nil
	e.byID = map[int]*listener{}
	e.identities = map[any]int{}
}

// Suspend stops dispatch. It is idempotent.
func (e *Event) Suspend() { e.suspended = true }

// Resume re-enables dispatch. It is idempotent.
func (e *Event) Resume() { e.suspended = false }

// Trigger dispatches args to a snapshot of the current listeners. Listeners
// removed during dispatch are skipped; listeners added during dispatch wait
// for the next trigger.
func (e *Event) Trigger(args ...any) any {
	if e.suspended || len(e.listeners) == 0 {
		return nil
	}

	var queue []*listener
	if e.mode == ModeFirst {
		queue = []*listener{e.listeners[0]}
	} else {
		queue = slices.Clone(e.listeners)
	}

	var (
		all  = []any{}
		last any
	)
	for _, l := range queue {
		if _, ok := e.byID[l.id]; !ok {
			continue
		}
		l.count++
		if l.count < l.start {
			continue
		}

		result := l.fn(l.arguments(args)...)
		l.called++
		if l.called == l.limit {
			e.UnByID(l.id)
		}

		switch e.mode {
		case ModeAll:
			all = append(all, result)
		case ModeFirst:
			return result
		case ModeLast:
			last = result
		default:
			if isFalse(result) {
				return false
			}
		}
	}

	switch e.mode {
	case ModeAll:
		return all
	case ModeLast:
		return last
	default:
		return nil
	}
}

func (e *Event) destroy() {
	e.listeners = nil
	e.byID = map[int]*listener{}
	e.identities = map[any]int{}
}

// Cancelled reports whether a ModeDefault Trigger was stopped by a listener
// returning false.
func Cancelled(result any) bool {
	return isFalse(result)
}

func isFalse(value any) bool {
	b, ok := value.(bool)
	return ok && !b
}

type funcIdentity uintptr

type referenceIdentity struct {
	kind string
	ptr  uintptr
}

// identityOf derives the dedupe key for a subscription. A non-nil scope wins;
// otherwise the listener's code pointer is used. Closures from one function
// literal may or may not share a code pointer (inlining copies the literal per
// call site), so pass a scope, or keep the subscription id, to unsubscribe
// them reliably.
func identityOf(fn Listener, scope any) any {
	if scope != nil {
		rv := reflect.ValueOf(scope)
		if rv.Type().Comparable() {
			return scope
		}
		switch rv.Kind() {
		case reflect.Map, reflect.Slice, reflect.Func:
			return referenceIdentity{kind: fmt.Sprintf("%T", scope), ptr: rv.Pointer()}
		}
	}
	if fn == nil {
		return nil
	}
	return funcIdentity(reflect.ValueOf(fn).Pointer())
}
