package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store regroupe les usages Redis de l'application
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping vérifie la connexion (healthz)
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// --- Blacklist JWT (révocation avant expiration) ---

// RevokeToken ajoute un jti à la blacklist jusqu'à l'expiration du jeton
func (s *Store) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := fmt.Sprintf("blacklist:%s", tokenID)
	if err := s.rdb.Set(ctx, key, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("redis set blacklist: %w", err)
	}
	return nil
}

// IsTokenRevoked vérifie si un jti est blacklisté
func (s *Store) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", tokenID)
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists blacklist: %w", err)
	}
	return n > 0, nil
}

// --- Compteurs de rate limit ---

// Attempts retourne le compteur courant (0 si absent)
func (s *Store) Attempts(ctx context.Context, key string) (int, error) {
	n, err := s.rdb.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}

// Hit incrémente le compteur d'une fenêtre fixe ; l'expiration est posée au premier hit
func (s *Store) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("redis expire %s: %w", key, err)
		}
	}
	return int(n), nil
}

// Cooldown retourne le temps restant d'un blocage actif
func (s *Store) Cooldown(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis ttl %s: %w", key, err)
	}
	// -2 : clé absente, -1 : pas d'expiration
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

// StartCooldown bloque la clé pendant d et efface le compteur associé
func (s *Store) StartCooldown(ctx context.Context, cooldownKey, counterKey string, d time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, cooldownKey, "1", d)
	pipe.Del(ctx, counterKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis cooldown %s: %w", cooldownKey, err)
	}
	return nil
}

// Reset supprime compteurs et blocages
func (s *Store) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
