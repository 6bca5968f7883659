package video

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"
)

const (
	DefaultFetchTimeout      = 10 * time.Second
	DefaultMaxCollectionSize = 50
	DefaultWorkers           = 4
)

var ErrEmptyCollection = errors.New("collection has no playable items")

type Options struct {
	FetchTimeout      time.Duration
	MaxCollectionSize int
	Workers           int
}

// Service resolves URLs through the adapter registry and the metadata cache.
type Service struct {
	registry *Registry
	cache    *Cache
	opts     Options
}

func NewService(registry *Registry, cache *Cache, opts Options) *Service {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.MaxCollectionSize <= 0 {
		opts.MaxCollectionSize = DefaultMaxCollectionSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Service{registry: registry, cache: cache, opts: opts}
}

// Resolve turns a URL into one or more queue items. Collection URLs are
// expanded in source order; items that fail are logged and left out.
func (s *Service) Resolve(ctx context.Context, rawURL string) ([]domain.QueueItem, error) {
	a, ok := s.registry.Match(rawURL)
	if !ok {
		return nil, &domain.UnsupportedProviderError{URL: rawURL}
	}
	logger := log.With().Str("module", "video").Str("service", a.ServiceID()).Logger()

	if !a.IsCollectionURL(rawURL) {
		id, err := a.GetVideoID(rawURL)
		if err != nil {
			return nil, err
		}
		item, err := s.ResolveItem(ctx, a, id)
		if err != nil {
			return nil, err
		}
		return []domain.QueueItem{item}, nil
	}

	ids, err := s.expand(ctx, a, rawURL)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("url", rawURL).Int("items", len(ids)).Msg("collection expanded")
	return s.resolveMany(ctx, a, ids, &logger)
}

// ResolveItem resolves a single id, through the cache when the adapter allows it.
func (s *Service) ResolveItem(ctx context.Context, a Adapter, id string) (domain.QueueItem, error) {
	if !a.IsCacheSafe() {
		return s.fetch(ctx, a, id)
	}
	key := domain.VideoKey{Service: a.ServiceID(), ID: id}
	return s.cache.GetOrFetch(ctx, key, func() (domain.QueueItem, error) {
		return s.fetch(ctx, a, id)
	})
}

// expand lists the ids of a collection. Like fetch it outlives the caller.
func (s *Service) expand(ctx context.Context, a Adapter, rawURL string) ([]string, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FetchTimeout)
	defer cancel()
	ids, err := a.ResolveCollection(fctx, rawURL, s.opts.MaxCollectionSize)
	if err != nil {
		return nil, asResolutionError(a.ServiceID(), rawURL, err)
	}
	if len(ids) > s.opts.MaxCollectionSize {
		ids = ids[:s.opts.MaxCollectionSize]
	}
	return ids, nil
}

type itemResult struct {
	item domain.QueueItem
	err  error
}

func (s *Service) resolveMany(ctx context.Context, a Adapter, ids []string, logger *zerolog.Logger) ([]domain.QueueItem, error) {
	if len(ids) == 0 {
		return nil, &domain.VideoResolutionError{Service: a.ServiceID(), Err: ErrEmptyCollection}
	}
	mapper := iter.Mapper[string, itemResult]{MaxGoroutines: s.opts.Workers}
	results := mapper.Map(ids, func(id *string) itemResult {
		item, err := s.ResolveItem(ctx, a, *id)
		return itemResult{item: item, err: err}
	})

	items := make([]domain.QueueItem, 0, len(results))
	var errs []error
	for i, r := range results {
		if r.err != nil {
			logger.Warn().Err(r.err).Str("video_id", ids[i]).Msg("collection item failed")
			errs = append(errs, r.err)
			continue
		}
		items = append(items, r.item)
	}
	if len(items) == 0 {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

// fetch is detached from the caller's cancellation: a coalesced fetch must
// finish for the remaining waiters, and a queue-add keeps running when its
// room goes away. The fetch timeout still bounds it.
func (s *Service) fetch(ctx context.Context, a Adapter, id string) (domain.QueueItem, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FetchTimeout)
	defer cancel()

	var (
		item domain.QueueItem
		err  error
		pc   panics.Catcher
	)
	pc.Try(func() { item, err = a.FetchVideoInfo(fctx, id) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}
	if err != nil {
		return domain.QueueItem{}, asResolutionError(a.ServiceID(), id, err)
	}
	item.Service = a.ServiceID()
	item.ID = id
	return item, nil
}

func asResolutionError(service, id string, err error) error {
	var invalid *domain.InvalidIdentifierError
	if errors.As(err, &invalid) {
		return err
	}
	var vre *domain.VideoResolutionError
	if errors.As(err, &vre) {
		return err
	}
	return &domain.VideoResolutionError{Service: service, ID: id, Err: err}
}
