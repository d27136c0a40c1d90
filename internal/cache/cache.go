package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront_back_end/internal/models"
)

const (
	productsKey     = "products:all"
	ProductCacheTTL = 10 * time.Minute
)

// GetProducts lit la liste de produits en cache ; ok=false si absente
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, bool, error) {
	data, err := s.rdb.Get(ctx, productsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get products: %w", err)
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		// entrée corrompue : on la traite comme absente
		_ = s.rdb.Del(ctx, productsKey).Err()
		return nil, false, nil
	}
	return products, true, nil
}

// SetProducts met la liste en cache
func (s *Store) SetProducts(ctx context.Context, products []models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	if err := s.rdb.Set(ctx, productsKey, data, ProductCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis set products: %w", err)
	}
	return nil
}

// InvalidateProducts invalide la liste après une mutation
func (s *Store) InvalidateProducts(ctx context.Context) error {
	if err := s.rdb.Del(ctx, productsKey).Err(); err != nil {
		return fmt.Errorf("redis del products: %w", err)
	}
	return nil
}
