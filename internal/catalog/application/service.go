package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/marketfront/cart-service/internal/cart/domain"
	"golang.org/x/sync/singleflight"
)

var ErrCacheMiss = errors.New("cache miss")

// Service resolves product snapshots for the pricing ledger. Reads go
// through a redis cache; concurrent misses for the same product collapse
// into a single store lookup.
type Service struct {
	log    *slog.Logger
	reader ProductReader
	cache  ProductCache
	sfg    singleflight.Group
}

func NewService(log *slog.Logger, reader ProductReader, cache ProductCache) *Service {
	return &Service{log: log, reader: reader, cache: cache}
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	v, err, _ := s.sfg.Do(id, func() (interface{}, error) {
		p, err := s.cache.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Error("product cache get failed", "product_id", id, "err", err)
		}

		p, err = s.reader.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			// Missing products are not cached; a later catalog import may
			// add them.
			return (*domain.Product)(nil), nil
		}

		if err := s.cache.Set(ctx, p); err != nil {
			s.log.Error("product cache set failed", "product_id", id, "err", err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}
