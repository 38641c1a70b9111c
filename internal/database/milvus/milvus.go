package milvus

import (
	"context"
	"fmt"

	"docqa/internal/config"
	"docqa/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// 分块集合的字段名。
const (
	FieldID         = "id"
	FieldText       = "text"
	FieldFileID     = "file_id"
	FieldFileName   = "file_name"
	FieldChunkIndex = "chunk_index"
	FieldEmbedding  = "embedding"
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client       // Milvus 客户端实例。
	Config config.MilvusConfig // Milvus 配置。
	log    *logger.Logger
}

// NewClient 创建 Milvus 客户端。
func NewClient(ctx context.Context, cfg config.MilvusConfig, log *logger.Logger) (*MilvusClient, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接到 Milvus: %w", err)
	}
	log.Info(fmt.Sprintf("✅ 成功连接到 Milvus: %s", cfg.Address))
	return &MilvusClient{Client: c, Config: cfg, log: log}, nil
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
		c.log.Info("ℹ️ 已安全关闭 Milvus 连接。")
	}
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// EnsureCollection 确保分块集合存在、已建索引并已加载。
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	collName := c.Config.CollectionName
	exists, err := c.Client.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("检查集合是否存在时出错: %w", err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(collName).
			WithDescription("document chunks").
			WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(FieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(int64(c.Config.MaxTextLength))).
			WithField(entity.NewField().WithName(FieldFileID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
			WithField(entity.NewField().WithName(FieldFileName).WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
			WithField(entity.NewField().WithName(FieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(c.Config.Dim)))

		if err := c.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("创建集合失败: %w", err)
		}
		idx, err := BuildIndex(c.Config)
		if err != nil {
			return err
		}
		if err := c.Client.CreateIndex(ctx, collName, FieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("为字段 '%s' 创建索引失败: %w", FieldEmbedding, err)
		}
		c.log.Info(fmt.Sprintf("✅ 已创建集合 '%s' (dim=%d, index=%s)", collName, c.Config.Dim, c.Config.IndexType))
	}

	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return fmt.Errorf("加载 Milvus 集合 '%s' 失败: %w", collName, err)
	}
	return nil
}

// DropCollection 删除分块集合（不存在时忽略）。
func (c *MilvusClient) DropCollection(ctx context.Context) error {
	collName := c.Config.CollectionName
	exists, err := c.Client.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("检查集合是否存在时出错: %w", err)
	}
	if !exists {
		return nil
	}
	if err := c.Client.DropCollection(ctx, collName); err != nil {
		return fmt.Errorf("删除集合 '%s' 失败: %w", collName, err)
	}
	c.log.Info(fmt.Sprintf("ℹ️ 已删除集合 '%s'", collName))
	return nil
}

// FlushCollection 手动触发一次刷新操作，将内存中的数据写入磁盘。
func (c *MilvusClient) FlushCollection(ctx context.Context) error {
	collName := c.Config.CollectionName
	if err := c.Client.Flush(ctx, collName, false); err != nil {
		return fmt.Errorf("刷新集合 '%s' 失败: %w", collName, err)
	}
	return nil
}

// MetricType 返回配置的相似度度量类型。
func MetricType(cfg config.MilvusConfig) entity.MetricType {
	return entity.MetricType(cfg.MetricType)
}

// BuildIndex 根据配置构建向量索引。
func BuildIndex(cfg config.MilvusConfig) (entity.Index, error) {
	metricType := MetricType(cfg)
	switch cfg.IndexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlat(metricType, 128)
	case "HNSW":
		return entity.NewIndexHNSW(metricType, 8, 96)
	case "FLAT":
		return entity.NewIndexFlat(metricType)
	case "AUTOINDEX":
		return entity.NewIndexAUTOINDEX(metricType)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", cfg.IndexType)
	}
}

// BuildSearchParam 返回与索引类型匹配的搜索参数。
func BuildSearchParam(cfg config.MilvusConfig) (entity.SearchParam, error) {
	switch cfg.IndexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlatSearchParam(16)
	case "HNSW":
		return entity.NewIndexHNSWSearchParam(64)
	case "FLAT":
		return entity.NewIndexFlatSearchParam()
	case "AUTOINDEX":
		return entity.NewIndexAUTOINDEXSearchParam(1)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", cfg.IndexType)
	}
}
