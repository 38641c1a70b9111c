package schema

const (
	// MetadataKeyFileID is the identity of the file a chunk was cut from.
	MetadataKeyFileID = "file_id"
	// MetadataKeyFileName is the key for the source file name.
	MetadataKeyFileName = "file_name"
	// MetadataKeyPageLabel is the key for the page number of a loaded page.
	MetadataKeyPageLabel = "page_label"
	// MetadataKeyChunkIndex is the position of a chunk within its file.
	MetadataKeyChunkIndex = "chunk_index"
)

// Document is the unit that flows through the pipelines: a loaded page, a chunk
// cut from it, or a chunk returned by the vector store.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Text is the string content of the document chunk.
	Text string

	// Embedding is the vector representation of the text.
	Embedding []float32

	// Score is the similarity reported by the vector store on retrieval. Higher is closer.
	Score float32

	// Metadata holds data about the chunk such as file_id, file_name and chunk_index.
	Metadata map[string]interface{}
}

// MetadataString returns the metadata value for key as a string, or "".
func (d *Document) MetadataString(key string) string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// CopyMetadata returns a shallow copy of metadata.
func CopyMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
