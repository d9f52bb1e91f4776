package unwind

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Crash is one captured failure as published to a [Hub].
type Crash struct {
	Err         error
	Records     []Record
	Fingerprint string
	// Dumps holds raw goroutine dumps taken when the failure was captured.
	Dumps []string
	Time  time.Time
}

// Listener receives dispatched crashes.
type Listener func(ctx context.Context, c Crash)

// Hub keeps the most recent crash and notifies registered listeners.
//
// Listeners run one crash at a time. A crash dispatched while listeners are
// running, whether from inside a listener or from another goroutine, still
// replaces the most recent crash but is not delivered to listeners. A
// panicking listener is recovered and logged.
type Hub struct {
	logger *slog.Logger

	mu          sync.Mutex
	listeners   []Listener
	last        *Crash
	dispatching bool
}

// NewHub returns an empty hub logging to logger, or to slog.Default when
// logger is nil.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{logger: logger}
}

var defaultHub = NewHub(nil)

// DefaultHub returns the process-wide hub.
func DefaultHub() *Hub { return defaultHub }

// AddListener registers l on the process-wide hub.
func AddListener(l Listener) { defaultHub.AddListener(l) }

// GlobalReports returns the records of the most recent crash published to
// the process-wide hub.
func GlobalReports() []Record { return defaultHub.Reports() }

// GlobalErrors returns the error of the most recent crash published to
// the process-wide hub.
func GlobalErrors() []error { return defaultHub.Errors() }

func (h *Hub) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// AddListener registers l.
func (h *Hub) AddListener(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// Last returns the most recent crash.
func (h *Hub) Last() (Crash, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Crash{}, false
	}
	return *h.last, true
}

// Reports returns the records of the most recent crash.
func (h *Hub) Reports() []Record {
	c, ok := h.Last()
	if !ok {
		return nil
	}
	return slices.Clone(c.Records)
}

// Errors returns the error of the most recent crash.
func (h *Hub) Errors() []error {
	c, ok := h.Last()
	if !ok || c.Err == nil {
		return nil
	}
	return []error{c.Err}
}

// Dispatch records c as the most recent crash and calls every listener
// with it, in registration order.
func (h *Hub) Dispatch(ctx context.Context, c Crash) {
	if c.Time.IsZero() {
		c.Time = time.Now()
	}
	h.mu.Lock()
	h.last = &c
	if h.dispatching {
		h.mu.Unlock()
		return
	}
	h.dispatching = true
	listeners := slices.Clone(h.listeners)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.dispatching = false
		h.mu.Unlock()
	}()
	for _, l := range listeners {
		h.notify(ctx, l, c)
	}
}

func (h *Hub) notify(ctx context.Context, l Listener, c Crash) {
	defer func() {
		if v := recover(); v != nil {
			h.log().ErrorContext(ctx, "unwind: listener panicked",
				slog.Any("panic", v),
				slog.String("fingerprint", c.Fingerprint),
			)
		}
	}()
	l(ctx, c)
}
