package csrf

import "net/http"

// Event identifies a step of the protection protocol.
type Event int

const (
	EventSafeMethod Event = iota
	EventExempt
	EventPassed
	EventRejected
	EventTokenGenerated
	EventTokenSaved
)

func (e Event) String() string {
	switch e {
	case EventSafeMethod:
		return "safe_method"
	case EventExempt:
		return "exempt"
	case EventPassed:
		return "passed"
	case EventRejected:
		return "rejected"
	case EventTokenGenerated:
		return "token_generated"
	case EventTokenSaved:
		return "token_saved"
	default:
		return "unknown"
	}
}

// Observer receives protocol events. It is called synchronously on the
// request goroutine and must be safe for concurrent use.
type Observer interface {
	Observe(r *http.Request, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r *http.Request, ev Event)

func (f ObserverFunc) Observe(r *http.Request, ev Event) { f(r, ev) }

func (p *Protector) observe(r *http.Request, ev Event) {
	if p == nil || p.observer == nil {
		return
	}
	p.observer.Observe(r, ev)
}
