// Package integration defines how third-party data sources plug into the
// dashboard. Widgets only carry an integration id and type; handlers keyed
// by that type know how to talk to the service behind it.
package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jwulff/gridboard/internal/domain"
)

// ErrUnknownMetric is returned by GetData for metrics a handler does not
// provide.
var ErrUnknownMetric = errors.New("unknown metric")

// ErrConfig wraps problems with an integration's stored configuration.
var ErrConfig = errors.New("invalid integration config")

// Result is the outcome of a connection test.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Data is one metric value fetched from an integration.
type Data struct {
	Metric    string    `json:"metric"`
	Value     any       `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Capability describes a metric a handler can serve.
type Capability struct {
	Metric      string `json:"metric"`
	Description string `json:"description"`
}

// Handler talks to one kind of external service.
type Handler interface {
	Type() string
	TestConnection(ctx context.Context, cfg domain.Config) (Result, error)
	GetData(ctx context.Context, cfg domain.Config, metric string) (*Data, error)
	Capabilities() []Capability
}

// Registry holds handlers by type.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a registry with the given handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds h, replacing any handler of the same type.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get returns the handler for typ.
func (r *Registry) Get(typ string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typ]
	return h, ok
}

// Types lists registered types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
