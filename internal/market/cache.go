package market

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"SonaChat/pkg/logger"
)

const defaultCacheTTL = 30 * time.Second

// CachedSource 在行情源之上增加一层 Redis 缓存，
// 保护上游免受行情服务限流影响。缓存读写失败只降级，不报错。
type CachedSource struct {
	source Source
	client *redis.Client
	ttl    time.Duration
}

// NewCachedSource 包装一个行情源。ttl 不大于零时使用默认值。
func NewCachedSource(source Source, client *redis.Client, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSource{source: source, client: client, ttl: ttl}
}

func cacheKey(symbol string) string {
	return "market_quote_" + symbol
}

// Quote 优先读缓存，未命中时回源并异步写回。
func (c *CachedSource) Quote(ctx context.Context, symbol string) (*Quote, error) {
	if raw, err := c.client.Get(ctx, cacheKey(symbol)).Bytes(); err == nil {
		var cached Quote
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.L().Warn("读取行情缓存失败", slog.String("symbol", symbol), slog.Any("error", err))
	}

	quote, err := c.source.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(quote); err == nil {
		if err := c.client.Set(ctx, cacheKey(quote.Symbol), encoded, c.ttl).Err(); err != nil {
			logger.L().Warn("写入行情缓存失败", slog.String("symbol", quote.Symbol), slog.Any("error", err))
		}
	}
	return quote, nil
}

var _ Source = (*CachedSource)(nil)
