package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level  string `yaml:"level"`  // 日志级别 (例如: "info", "debug", "warn", "error")
	Format string `yaml:"format"` // 输出格式: "json" 或 "text"
}

// ServerConfig 定义了 HTTP 与 gRPC 服务的监听配置。
type ServerConfig struct {
	HTTPAddress     string `yaml:"httpAddress"`     // HTTP 监听地址
	GRPCAddress     string `yaml:"grpcAddress"`     // gRPC 健康检查监听地址
	RequestTimeout  string `yaml:"requestTimeout"`  // 单个请求的超时时间 (例如: "120s")
	ShutdownTimeout string `yaml:"shutdownTimeout"` // 优雅关闭的等待时间
	MaxUploadBytes  int64  `yaml:"maxUploadBytes"`  // 单次上传的最大字节数
}

// IngestionConfig 定义了文档入库流程的配置。
type IngestionConfig struct {
	ChunkSize    int    `yaml:"chunkSize"`    // 每个分块的最大字符数
	ChunkOverlap int    `yaml:"chunkOverlap"` // 相邻分块的重叠字符数，未设置时为 chunkSize/5
	Splitter     string `yaml:"splitter"`     // 分块策略: "recursive" 或 "token"
	Encoding     string `yaml:"encoding"`     // token 分块使用的编码 (例如: "cl100k_base")
	Compensate   *bool  `yaml:"compensate"`   // 向量写入失败时是否执行补偿删除，默认开启
}

// AnsweringConfig 定义了问答流程的配置。
type AnsweringConfig struct {
	TopK           int    `yaml:"topK"`           // 检索的分块数量
	MaxNewTokens   int    `yaml:"maxNewTokens"`   // 生成的最大 token 数
	PromptTemplate string `yaml:"promptTemplate"` // 自定义提示词模板，需包含 {context} 和 {question}
}

// ProviderConfig 是 LLM 和 Embedding 提供商的通用配置。
type ProviderConfig struct {
	Provider    string `yaml:"provider"`    // 提供商: "openai", "ollama", "gemini", "huggingface"
	Model       string `yaml:"model"`       // 模型名称
	APIKey      string `yaml:"apiKey"`      // API 密钥
	BaseURL     string `yaml:"baseURL"`     // 自定义服务地址
	BatchSize   int    `yaml:"batchSize"`   // 批量 embedding 的批大小
	Concurrency int    `yaml:"concurrency"` // 批量 embedding 的并发数
}

// ChromemConfig 定义了嵌入式向量库 chromem 的配置。
type ChromemConfig struct {
	PersistDir string `yaml:"persistDir"` // 持久化目录，为空时仅保存在内存中
	Collection string `yaml:"collection"` // 集合名称
	Compress   bool   `yaml:"compress"`   // 是否压缩持久化文件
}

// MilvusConfig 定义了 Milvus 向量数据库的连接与集合配置。
type MilvusConfig struct {
	Address        string `yaml:"address"`        // Milvus 服务地址
	Username       string `yaml:"username"`       // 用户名
	Password       string `yaml:"password"`       // 密码
	CollectionName string `yaml:"collectionName"` // 集合名称
	Dim            int    `yaml:"dim"`            // 向量维度
	MetricType     string `yaml:"metricType"`     // 相似度度量类型 (例如: "L2", "COSINE", "IP")
	IndexType      string `yaml:"indexType"`      // 索引类型 (例如: "HNSW", "IVF_FLAT", "FLAT")
	MaxTextLength  int    `yaml:"maxTextLength"`  // 文本字段的最大长度
}

// VectorIndexConfig 定义了向量索引后端。
type VectorIndexConfig struct {
	Backend        string        `yaml:"backend"`        // "chromem", "milvus" 或 "memory"
	ResetOnStartup bool          `yaml:"resetOnStartup"` // 启动时显式重置索引
	Chromem        ChromemConfig `yaml:"chromem"`
	Milvus         MilvusConfig  `yaml:"milvus"`
}

// MinIOConfig 定义了 S3 兼容对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // 服务端点，可以带 http(s):// 前缀
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 存储桶名称
	Region    string `yaml:"region"`    // 区域
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// ObjectStoreConfig 定义了原始文件存储后端。
type ObjectStoreConfig struct {
	Backend string      `yaml:"backend"` // "minio" 或 "memory"
	MinIO   MinIOConfig `yaml:"minio"`
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	URI                 string `yaml:"uri"`                 // 完整连接串，优先于 address
	Address             string `yaml:"address"`             // MongoDB 服务器地址
	Username            string `yaml:"username"`            // 用户名
	Password            string `yaml:"password"`            // 密码
	Database            string `yaml:"database"`            // 数据库名称，为空时从 URI 路径中解析
	FilesCollection     string `yaml:"filesCollection"`     // 文件记录集合
	QuestionsCollection string `yaml:"questionsCollection"` // 问题集集合
}

// MetadataStoreConfig 定义了元数据存储后端。
type MetadataStoreConfig struct {
	Backend string      `yaml:"backend"` // "mongo" 或 "memory"
	MongoDB MongoConfig `yaml:"mongodb"`
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// CacheConfig 定义了答案缓存的配置。
type CacheConfig struct {
	Enabled  bool        `yaml:"enabled"`
	Backend  string      `yaml:"backend"`  // "redis" 或 "memory" (进程内 LRU)
	TTL      string      `yaml:"ttl"`      // 例如: "10m"
	Prefix   string      `yaml:"prefix"`   // Redis 键前缀
	Capacity int         `yaml:"capacity"` // 进程内缓存的最大条目数
	Redis    RedisConfig `yaml:"redis"`
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topic   string   `yaml:"topic"`   // 文档事件主题
}

// EventsConfig 定义了文档事件发布的配置。
type EventsConfig struct {
	Enabled bool        `yaml:"enabled"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// RateLimiterConfig 定义了令牌桶限流器的配置。
type RateLimiterConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`  // 每秒速率
	Burst   int     `yaml:"burst"` // 桶容量
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App           AppInfo             `yaml:"app"`           // 应用程序信息
	Logger        LoggerConfig        `yaml:"logger"`        // 日志记录器配置
	Server        ServerConfig        `yaml:"server"`        // 服务监听配置
	Ingestion     IngestionConfig     `yaml:"ingestion"`     // 入库配置
	Answering     AnsweringConfig     `yaml:"answering"`     // 问答配置
	LLM           ProviderConfig      `yaml:"llm"`           // LLM 配置
	Embedding     ProviderConfig      `yaml:"embedding"`     // Embedding 配置
	VectorIndex   VectorIndexConfig   `yaml:"vectorIndex"`   // 向量索引配置
	ObjectStore   ObjectStoreConfig   `yaml:"objectStore"`   // 对象存储配置
	MetadataStore MetadataStoreConfig `yaml:"metadataStore"` // 元数据存储配置
	Cache         CacheConfig         `yaml:"cache"`         // 答案缓存配置
	Events        EventsConfig        `yaml:"events"`        // 事件发布配置
	Middleware    MiddlewareConfig    `yaml:"middleware"`    // 中间件配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 解析前会先加载当前目录下的 .env 文件（不存在时忽略），
// 并用环境变量展开 YAML 中的 ${VAR} 引用。
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 文件失败: %w", err)
	}

	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	return Parse(yamlFile)
}

// Parse 解析 YAML 内容，补全默认值并校验。
func Parse(data []byte) (*AppConfig, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回全部使用默认值的配置。
func Default() *AppConfig {
	var cfg AppConfig
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults 为未设置的字段填充默认值。
func (c *AppConfig) ApplyDefaults() {
	setString(&c.App.Name, "docqa")
	setString(&c.Logger.Level, "info")
	setString(&c.Logger.Format, "json")

	setString(&c.Server.HTTPAddress, ":8080")
	setString(&c.Server.GRPCAddress, ":50051")
	setString(&c.Server.RequestTimeout, "120s")
	setString(&c.Server.ShutdownTimeout, "5s")
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 64 << 20
	}

	setInt(&c.Ingestion.ChunkSize, 2000)
	// 重叠默认为分块大小的五分之一 (2000 -> 400)
	setInt(&c.Ingestion.ChunkOverlap, c.Ingestion.ChunkSize/5)
	setString(&c.Ingestion.Splitter, "recursive")
	setString(&c.Ingestion.Encoding, "cl100k_base")
	if c.Ingestion.Compensate == nil {
		on := true
		c.Ingestion.Compensate = &on
	}

	setInt(&c.Answering.TopK, 3)
	setInt(&c.Answering.MaxNewTokens, 4096)

	setString(&c.LLM.Provider, "openai")
	setString(&c.Embedding.Provider, "huggingface")
	setString(&c.Embedding.Model, "sentence-transformers/all-MiniLM-L6-v2")
	setInt(&c.Embedding.BatchSize, 64)
	setInt(&c.Embedding.Concurrency, 4)

	setString(&c.VectorIndex.Backend, "chromem")
	setString(&c.VectorIndex.Chromem.PersistDir, "embeddings")
	setString(&c.VectorIndex.Chromem.Collection, "chunks")
	setString(&c.VectorIndex.Milvus.CollectionName, "docqa_chunks")
	setInt(&c.VectorIndex.Milvus.Dim, 384)
	setString(&c.VectorIndex.Milvus.MetricType, "COSINE")
	setString(&c.VectorIndex.Milvus.IndexType, "HNSW")
	setInt(&c.VectorIndex.Milvus.MaxTextLength, 65535)

	setString(&c.ObjectStore.Backend, "minio")
	setString(&c.MetadataStore.Backend, "mongo")
	setString(&c.MetadataStore.MongoDB.FilesCollection, "collection")
	setString(&c.MetadataStore.MongoDB.QuestionsCollection, "questions")
	if c.MetadataStore.MongoDB.Database == "" {
		c.MetadataStore.MongoDB.Database = databaseFromURI(c.MetadataStore.MongoDB.URI)
	}

	setString(&c.Cache.Backend, "redis")
	setString(&c.Cache.TTL, "10m")
	setInt(&c.Cache.Capacity, 1024)
	setString(&c.Cache.Prefix, "docqa:answer")
	setString(&c.Events.Kafka.Topic, "docqa.documents")

	if c.Middleware.RateLimiter.Rate <= 0 {
		c.Middleware.RateLimiter.Rate = 20
	}
	setInt(&c.Middleware.RateLimiter.Burst, 40)
	if c.Middleware.CircuitBreaker.FailureThreshold == 0 {
		c.Middleware.CircuitBreaker.FailureThreshold = 5
	}
	if c.Middleware.CircuitBreaker.SuccessThreshold == 0 {
		c.Middleware.CircuitBreaker.SuccessThreshold = 1
	}
	setString(&c.Middleware.CircuitBreaker.Timeout, "30s")
}

// Validate 校验配置之间的约束。
func (c *AppConfig) Validate() error {
	if c.Ingestion.ChunkSize <= 0 {
		return fmt.Errorf("ingestion.chunkSize 必须大于 0，当前为 %d", c.Ingestion.ChunkSize)
	}
	if c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("ingestion.chunkOverlap (%d) 必须在 [0, chunkSize) 之间", c.Ingestion.ChunkOverlap)
	}
	if !oneOf(c.Ingestion.Splitter, "recursive", "token") {
		return fmt.Errorf("未知的分块策略: %s", c.Ingestion.Splitter)
	}
	if c.Answering.TopK <= 0 {
		return fmt.Errorf("answering.topK 必须大于 0，当前为 %d", c.Answering.TopK)
	}
	if tpl := c.Answering.PromptTemplate; tpl != "" {
		if !strings.Contains(tpl, "{context}") || !strings.Contains(tpl, "{question}") {
			return errors.New("answering.promptTemplate 必须包含 {context} 和 {question}")
		}
	}
	providers := []string{"openai", "ollama", "gemini", "huggingface"}
	if !oneOf(c.LLM.Provider, providers...) {
		return fmt.Errorf("未知的 LLM 提供商: %s", c.LLM.Provider)
	}
	if !oneOf(c.Embedding.Provider, providers...) {
		return fmt.Errorf("未知的 Embedding 提供商: %s", c.Embedding.Provider)
	}
	if !oneOf(c.VectorIndex.Backend, "chromem", "milvus", "memory") {
		return fmt.Errorf("未知的向量索引后端: %s", c.VectorIndex.Backend)
	}
	if !oneOf(c.ObjectStore.Backend, "minio", "memory") {
		return fmt.Errorf("未知的对象存储后端: %s", c.ObjectStore.Backend)
	}
	if !oneOf(c.MetadataStore.Backend, "mongo", "memory") {
		return fmt.Errorf("未知的元数据存储后端: %s", c.MetadataStore.Backend)
	}
	if !oneOf(c.Cache.Backend, "redis", "memory") {
		return fmt.Errorf("未知的缓存后端: %s", c.Cache.Backend)
	}
	if c.MetadataStore.Backend == "mongo" && c.MetadataStore.MongoDB.Database == "" {
		return errors.New("metadataStore.mongodb.database 为空，且无法从 URI 中解析")
	}
	for name, d := range map[string]string{
		"server.requestTimeout":             c.Server.RequestTimeout,
		"server.shutdownTimeout":            c.Server.ShutdownTimeout,
		"cache.ttl":                         c.Cache.TTL,
		"middleware.circuitBreaker.timeout": c.Middleware.CircuitBreaker.Timeout,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s 不是合法的时间间隔: %w", name, err)
		}
	}
	if c.Events.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		return errors.New("events.enabled 为 true 时必须配置 events.kafka.brokers")
	}
	return nil
}

// CompensateEnabled 返回是否在部分入库失败后执行补偿删除。
func (c *AppConfig) CompensateEnabled() bool {
	return c.Ingestion.Compensate == nil || *c.Ingestion.Compensate
}

// Duration 解析已校验过的时间间隔字符串，解析失败时返回 fallback。
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// databaseFromURI 从 mongodb://host/dbname 形式的连接串中取出数据库名。
func databaseFromURI(uri string) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
