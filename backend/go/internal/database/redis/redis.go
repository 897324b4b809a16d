package redis

import (
	"FactVerse/backend/go/internal/config"
	"FactVerse/backend/go/pkg/logger"
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Connect 使用配置创建 Redis 客户端并通过 Ping 检查连接。
func Connect(ctx context.Context, cfg *config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("无法连接到 Redis: %w", err)
	}

	log.Info("成功连接到 Redis")
	return rdb, nil
}
