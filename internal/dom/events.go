package dom

// Event is a synthetic DOM event. Dispatch runs target listeners first, then
// bubbles through the ancestor chain unless Bubbles is false.
type Event struct {
	Type          string
	Target        *Node
	CurrentTarget *Node
	Bubbles       bool
	Cancelable    bool

	// Detail carries event-specific payload, e.g. the file list on a
	// synthetic drop event.
	Detail any

	defaultPrevented bool
	stopped          bool
}

// PreventDefault suppresses the default action if the event is cancelable.
func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.defaultPrevented = true
	}
}

// DefaultPrevented reports whether a listener canceled the default action.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation halts bubbling after the current target's listeners run.
func (e *Event) StopPropagation() { e.stopped = true }

// Listener handles a dispatched event.
type Listener func(*Event)

// AddEventListener registers a bubbling-phase listener.
func (n *Node) AddEventListener(eventType string, fn Listener) {
	if n.listeners == nil {
		n.listeners = make(map[string][]Listener)
	}
	n.listeners[eventType] = append(n.listeners[eventType], fn)
}

// DispatchEvent runs listeners at the target and up the ancestor chain.
// It returns false when a listener called PreventDefault.
func (n *Node) DispatchEvent(e *Event) bool {
	e.Target = n
	n.invokeListeners(e)
	if e.Bubbles && !e.stopped {
		n.Ancestors(func(a *Node) bool {
			a.invokeListeners(e)
			return !e.stopped
		})
	}
	return !e.defaultPrevented
}

func (n *Node) invokeListeners(e *Event) {
	fns := n.listeners[e.Type]
	if len(fns) == 0 {
		return
	}
	e.CurrentTarget = n
	for _, fn := range append([]Listener(nil), fns...) {
		fn(e)
	}
}

// FireBubbling dispatches a simple bubbling, cancelable event of the given
// type and reports whether the default action should proceed.
func (n *Node) FireBubbling(eventType string) bool {
	return n.DispatchEvent(&Event{Type: eventType, Bubbles: true, Cancelable: true})
}
