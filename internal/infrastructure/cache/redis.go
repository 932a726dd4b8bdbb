package cache

import (
	"context"
	"fmt"
	"time"

	"billexpress/internal/config"
	"billexpress/internal/model"

	"github.com/go-redis/redis/v8"
)

// InitRedis 创建 Redis 客户端并检查连通性
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	return client, nil
}

// Mirror 账户镜像的写入接口
type Mirror interface {
	SetAccount(ctx context.Context, account *model.Account) error
	RemoveAccount(ctx context.Context, userID, accountID string) error
}

// NewMirror 按 mirror.driver 选择镜像实现，none 返回 nil
func NewMirror(cfg *config.MirrorConfig, client *redis.Client) (Mirror, error) {
	switch cfg.Driver {
	case config.MirrorRedis:
		if client == nil {
			return nil, fmt.Errorf("mirror driver %q requires a redis client", cfg.Driver)
		}
		return NewRedisMirror(client), nil
	case config.MirrorMemory:
		return NewMemoryMirror(), nil
	case config.MirrorNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported mirror driver %q", cfg.Driver)
}
