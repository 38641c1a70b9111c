package mongo

import (
	"context"
	"fmt"
	"time"

	"docqa/internal/config"
	"docqa/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client 包装 MongoDB 客户端以及要使用的数据库。
type Client struct {
	client   *mongo.Client
	database string
	log      *logger.Logger
}

// NewClient 建立到 MongoDB 的连接并 Ping 一次以确认可用。
// URI 优先；未配置 URI 时使用 Address 及用户名密码。
func NewClient(ctx context.Context, cfg config.MongoConfig, log *logger.Logger) (*Client, error) {
	uri := cfg.URI
	if uri == "" {
		uri = cfg.Address
	}
	clientOptions := options.Client().ApplyURI(uri)
	// 如果配置了用户名和密码，则设置认证信息。
	if cfg.Username != "" && cfg.Password != "" {
		clientOptions.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("无法连接到 MongoDB: %w", err)
	}
	if err = c.Ping(connectCtx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("无法 Ping MongoDB: %w", err)
	}

	log.Info(fmt.Sprintf("✅ 成功连接到 MongoDB, 数据库: %s", cfg.Database))
	return &Client{client: c, database: cfg.Database, log: log}, nil
}

// Database 返回配置的数据库句柄。
func (c *Client) Database() *mongo.Database {
	return c.client.Database(c.database)
}

// Close 安全地断开 MongoDB 客户端连接。
func (c *Client) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	c.log.Info("ℹ️ 已断开 MongoDB 连接。")
	return c.client.Disconnect(ctx)
}

// HealthCheck 检查 MongoDB 连接的健康状况。
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("MongoDB 客户端未初始化")
	}
	return c.client.Ping(ctx, nil)
}
