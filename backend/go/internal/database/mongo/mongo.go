package mongo

import (
	"FactVerse/backend/go/internal/config"
	"FactVerse/backend/go/pkg/logger"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect 创建 MongoDB 客户端并确认连接可用。
func Connect(ctx context.Context, cfg *config.MongoConfig, log *logger.Logger) (*mongo.Client, error) {
	uri := cfg.URI
	if uri == "" {
		uri = "mongodb://" + cfg.Address
	}
	clientOptions := options.Client().ApplyURI(uri)
	// 如果配置了用户名和密码，则设置认证信息。
	if cfg.URI == "" && cfg.Username != "" && cfg.Password != "" {
		clientOptions.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("无法连接到 MongoDB: %w", err)
	}
	if err = c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("无法 Ping MongoDB: %w", err)
	}

	log.Info("成功连接到 MongoDB")
	return c, nil
}

// Close 断开 MongoDB 客户端连接。
func Close(ctx context.Context, c *mongo.Client) error {
	if c == nil {
		return nil
	}
	return c.Disconnect(ctx)
}
