// Package stock serves the selectable stock listing that feeds cart
// line selection, read through a Redis cache keyed by query signature.
// Settlement invalidates the cache so the console sees fresh quantities
// after every sale.
package stock

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/salesapi"
)

// ErrNotFound indicates the stock item is not in the current listing.
var ErrNotFound = errors.New("stock item not found")

// Lister is the slice of the sales backend this service consumes.
type Lister interface {
	ListStock(ctx context.Context, query salesapi.StockQuery) ([]salesapi.StockItem, error)
}

// Service is a read-through cache over the backend stock listing.
type Service struct {
	Client Lister
	Cache  *Cache
	Logger zerolog.Logger
}

// List returns the stock records matching the query, from cache when
// possible. Cache errors degrade to a direct backend read.
func (s *Service) List(ctx context.Context, query salesapi.StockQuery) ([]salesapi.StockItem, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("stock service not configured")
	}
	signature := query.Signature()
	var cached []salesapi.StockItem
	hit, err := s.Cache.Get(ctx, signature, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Str("signature", signature).Msg("stock cache read failed")
	}
	if hit {
		return cached, nil
	}
	items, err := s.Client.ListStock(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, signature, items); err != nil {
		s.Logger.Warn().Err(err).Str("signature", signature).Msg("stock cache write failed")
	}
	return items, nil
}

// Get resolves a single stock item by id through the default listing.
func (s *Service) Get(ctx context.Context, id string) (salesapi.StockItem, error) {
	items, err := s.List(ctx, salesapi.StockQuery{})
	if err != nil {
		return salesapi.StockItem{}, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return salesapi.StockItem{}, ErrNotFound
}

// Invalidate drops every cached listing. Called after a settled
// checkout so quantities refresh.
func (s *Service) Invalidate(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.Cache.Invalidate(ctx)
}
