package minio

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/config"
	"docqa/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client 包装 MinIO 客户端以及目标存储桶。
type Client struct {
	*minio.Client
	Bucket   string
	Endpoint string
	Secure   bool
	log      *logger.Logger
}

// NewClient 创建 MinIO 客户端并确保存储桶存在。
// Endpoint 可以带 http:// 或 https:// 前缀，前缀会覆盖 Secure 配置。
func NewClient(ctx context.Context, cfg config.MinIOConfig, log *logger.Logger) (*Client, error) {
	endpoint, secure := SplitEndpoint(cfg.Endpoint, cfg.Secure)

	c, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""), // 静态凭证。
		Secure: secure,                                                    // 是否使用 HTTPS。
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("无法创建 MinIO 客户端: %w", err)
	}

	mc := &Client{Client: c, Bucket: cfg.Bucket, Endpoint: endpoint, Secure: secure, log: log}
	if err := mc.EnsureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("✅ 成功连接到 MinIO, 存储桶: %s", cfg.Bucket))
	return mc, nil
}

// EnsureBucket 在存储桶不存在时创建它。
func (c *Client) EnsureBucket(ctx context.Context, region string) error {
	exists, err := c.BucketExists(ctx, c.Bucket)
	if err != nil {
		return fmt.Errorf("MinIO 初始化健康检查失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := c.MakeBucket(ctx, c.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", c.Bucket, err)
	}
	c.log.Info(fmt.Sprintf("存储桶 '%s' 不存在，已创建。", c.Bucket))
	return nil
}

// HealthCheck 检查 MinIO 连接的健康状况。
func (c *Client) HealthCheck(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return fmt.Errorf("MinIO 客户端未初始化")
	}
	if _, err := c.BucketExists(ctx, c.Bucket); err != nil {
		return fmt.Errorf("MinIO 健康检查失败: %w", err)
	}
	return nil
}

// SplitEndpoint 去掉端点的协议前缀，并据此决定是否使用 HTTPS。
func SplitEndpoint(endpoint string, secure bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	}
	return strings.TrimSuffix(endpoint, "/"), secure
}
