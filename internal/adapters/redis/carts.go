package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/plan-it/planit/internal/domain"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// Stash parks an unfinalized cart under its payment session id. The TTL
// bounds how long an abandoned payment can hold client state server-side;
// nothing here reserves capacity.
func (c *Cache) Stash(ctx context.Context, sessionID string, cart domain.Cart, ttl time.Duration) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "cart:"+sessionID, data, ttl).Err()
}

func (c *Cache) Load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	val, err := c.client.Get(ctx, "cart:"+sessionID).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cart domain.Cart
	if err := json.Unmarshal(val, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Cache) Discard(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, "cart:"+sessionID).Err()
}
