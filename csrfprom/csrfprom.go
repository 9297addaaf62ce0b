// Package csrfprom counts csrf protocol events with Prometheus.
package csrfprom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
)

// Collector is a csrf.Observer backed by a counter vector labelled by event
// and request method. Methods outside the standard set are counted as
// "other".
type Collector struct {
	events *prometheus.CounterVec
}

var _ csrf.Observer = (*Collector)(nil)

// New registers the csrf counters on reg under namespace.
//
// Params:
//   - reg: the registry; prometheus.DefaultRegisterer in most programs.
//   - namespace: metric namespace, e.g. the application name.
//
// Returns:
//   - the Collector, or the registration error (for instance a duplicate
//     registration).
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "csrf",
			Name:      "events_total",
			Help:      "Total number of CSRF protection events",
		},
		[]string{"event", "method"},
	)
	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &Collector{events: events}, nil
}

// Observe implements csrf.Observer.
func (c *Collector) Observe(r *http.Request, ev csrf.Event) {
	c.events.WithLabelValues(ev.String(), methodLabel(r.Method)).Inc()
}

// Count returns the counter for one event and method.
func (c *Collector) Count(ev csrf.Event, method string) prometheus.Counter {
	return c.events.WithLabelValues(ev.String(), methodLabel(method))
}

// otherMethod labels every method net/http does not define.
const otherMethod = "other"

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodConnect,
		http.MethodOptions, http.MethodTrace:
		return method
	default:
		return otherMethod
	}
}
