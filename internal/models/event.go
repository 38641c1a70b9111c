package models

import "time"

// EventType 文档生命周期事件类型。
type EventType string

const (
	EventIngested          EventType = "document.ingested"
	EventSkipped           EventType = "document.skipped"
	EventRejected          EventType = "document.rejected"
	EventQuestionsIngested EventType = "questions.ingested"
	EventPartialIngestion  EventType = "document.partial_ingestion"
	EventDeleted           EventType = "document.deleted"
	EventPartialDeletion   EventType = "document.partial_deletion"
	EventIndexReset        EventType = "index.reset"
)

// DocumentEvent 发布到消息队列，供运维侧追踪入库和删除。
type DocumentEvent struct {
	Type      EventType `json:"type"`
	FileIDs   []string  `json:"file_ids,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	ChunkIDs  []string  `json:"chunk_ids,omitempty"`
	Count     int       `json:"count,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
