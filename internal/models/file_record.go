package models

import "time"

// FileRecord 是元数据库中每个已入库文档的记录。
// ChunkIDs 与向量索引中属于该文件的条目一一对应。
type FileRecord struct {
	ID        string    `bson:"_id" json:"id"`
	FileName  string    `bson:"file_name" json:"file_name"`
	FileURL   string    `bson:"file_url" json:"file_url"`
	FileSize  int64     `bson:"file_size" json:"file_size"`
	ChunkIDs  []string  `bson:"chunk_ids" json:"chunk_ids"`
	SHA256    string    `bson:"sha256,omitempty" json:"sha256,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// QuestionRecord 是问题集 JSON 中的一条对象，原样存储。
type QuestionRecord map[string]interface{}
