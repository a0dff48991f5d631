package redis

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultDecimalsPrefix 是精度缓存键的默认前缀。
const DefaultDecimalsPrefix = "openswap:decimals:"

// KV 是缓存所需的最小命令集，*goredis.Client 满足该接口。
type KV interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

// DecimalsCache 把 ERC20 decimals() 的链上读数缓存到 Redis。
// 精度是合约常量，只有真实读数才会写入，回退值不会被缓存。
type DecimalsCache struct {
	client KV
	prefix string
	ttl    time.Duration
}

// NewDecimalsCache 创建精度缓存。ttl 为 0 表示永不过期。
func NewDecimalsCache(client KV, prefix string, ttl time.Duration) *DecimalsCache {
	if prefix == "" {
		prefix = DefaultDecimalsPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &DecimalsCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *DecimalsCache) key(token common.Address) string {
	return c.prefix + strings.ToLower(token.Hex())
}

// Get 返回缓存的精度；未命中时 ok 为 false 且 err 为 nil。
func (c *DecimalsCache) Get(ctx context.Context, token common.Address) (uint8, bool, error) {
	raw, err := c.client.Get(ctx, c.key(token)).Result()
	if stdErrors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("读取精度缓存失败: %w", err)
	}
	value, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, false, fmt.Errorf("精度缓存值 %q 非法: %w", raw, err)
	}
	return uint8(value), true, nil
}

// Set 写入精度缓存。
func (c *DecimalsCache) Set(ctx context.Context, token common.Address, decimals uint8) error {
	if err := c.client.Set(ctx, c.key(token), strconv.FormatUint(uint64(decimals), 10), c.ttl).Err(); err != nil {
		return fmt.Errorf("写入精度缓存失败: %w", err)
	}
	return nil
}
