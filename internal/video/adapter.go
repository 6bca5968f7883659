// Package video turns arbitrary provider URLs into normalized queue items.
package video

import (
	"context"

	"github.com/dkeye/Together/internal/domain"
)

//go:generate mockgen -source=adapter.go -destination=mocks/mock_adapter.go -package=mocks

// Adapter is implemented once per video provider and registered at startup.
// One instance serves many concurrent resolutions, so implementations keep
// credentials in their own fields and must be safe for concurrent use.
type Adapter interface {
	// ServiceID is the stable provider name stored in QueueItem.Service.
	ServiceID() string
	// CanHandleURL reports whether the URL belongs to this provider.
	CanHandleURL(rawURL string) bool
	// IsCollectionURL reports whether the URL names several items (playlist, album, show).
	IsCollectionURL(rawURL string) bool
	// GetVideoID extracts the item id without any network call.
	// Malformed ids fail with *domain.InvalidIdentifierError.
	GetVideoID(rawURL string) (string, error)
	// ResolveCollection expands a collection URL into at most limit ids, in source order.
	ResolveCollection(ctx context.Context, rawURL string, limit int) ([]string, error)
	// FetchVideoInfo loads metadata for a single id from upstream.
	FetchVideoInfo(ctx context.Context, id string) (domain.QueueItem, error)
	// IsCacheSafe is false when metadata must be re-fetched on every request.
	IsCacheSafe() bool
}

// Registry holds adapters in match order. It is filled before the service
// starts and only read afterwards.
type Registry struct {
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

func (r *Registry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// Match returns the first adapter that recognizes the URL.
func (r *Registry) Match(rawURL string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.CanHandleURL(rawURL) {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) Get(serviceID string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.ServiceID() == serviceID {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) Services() []string {
	out := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a.ServiceID())
	}
	return out
}
