package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"quanlydonhang/backend/internal/domain"
)

const (
	branchKeyPrefix      = "qldh:branches:"
	productGenerationKey = "qldh:products:gen"
	productKeyPrefix     = "qldh:products:"
)

type RedisCatalogCache struct {
	client *redis.Client
}

func NewRedisCatalogCache(addr string, password string, db int) *RedisCatalogCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCatalogCache{client: client}
}

func (c *RedisCatalogCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCatalogCache) Close() error {
	return c.client.Close()
}

func (c *RedisCatalogCache) GetBranches(ctx context.Context, branchID int64) ([]domain.Branch, bool, error) {
	var branches []domain.Branch
	ok, err := c.getJSON(ctx, branchKey(branchID), &branches)
	return branches, ok, err
}

func (c *RedisCatalogCache) SetBranches(ctx context.Context, branchID int64, branches []domain.Branch, ttl time.Duration) error {
	return c.setJSON(ctx, branchKey(branchID), branches, ttl)
}

func (c *RedisCatalogCache) GetProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, bool, error) {
	gen, err := c.productGeneration(ctx)
	if err != nil {
		return nil, false, err
	}
	var products []domain.Product
	ok, err := c.getJSON(ctx, productKey(gen, query), &products)
	return products, ok, err
}

func (c *RedisCatalogCache) SetProducts(ctx context.Context, query domain.ProductQuery, products []domain.Product, ttl time.Duration) error {
	gen, err := c.productGeneration(ctx)
	if err != nil {
		return err
	}
	return c.setJSON(ctx, productKey(gen, query), products, ttl)
}

// InvalidateProducts bumps the generation counter; entries under the old
// generation are never read again and expire on their own TTL.
func (c *RedisCatalogCache) InvalidateProducts(ctx context.Context) error {
	return c.client.Incr(ctx, productGenerationKey).Err()
}

func (c *RedisCatalogCache) productGeneration(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, productGenerationKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCatalogCache) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCatalogCache) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func branchKey(branchID int64) string {
	return fmt.Sprintf("%s%d", branchKeyPrefix, branchID)
}

func productKey(gen int64, query domain.ProductQuery) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query.Search))))
	return fmt.Sprintf("%s%d:%d:%s:%s:%s", productKeyPrefix, gen, query.BranchID,
		query.SortField, strings.ToLower(query.SortOrder), hex.EncodeToString(sum[:8]))
}
