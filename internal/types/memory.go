// Package types holds the data model shared by every subsystem of the
// memory service: memories, their history, chunking metadata, the
// relationship graph, and auth/audit records.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Memory is the atomic unit of storage. It is never constructed directly
// from raw input — only the extraction pipeline produces one.
type Memory struct {
	ID          string                 `json:"id"`
	OwnerID     string                 `json:"owner_id"`
	Content     string                 `json:"content"`
	Embedding   []float32              `json:"embedding,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	ContentHash string                 `json:"content_hash"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// HashContent returns the stable content hash used for dedup/equality.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EventKind enumerates the possible history event kinds.
type EventKind string

const (
	EventAdd    EventKind = "ADD"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// HistoryEvent is an append-only record of a memory's lifecycle. Once
// written it is never mutated.
type HistoryEvent struct {
	MemoryID    string    `json:"memory_id"`
	Kind        EventKind `json:"event_kind"`
	PrevContent string    `json:"prev_content,omitempty"`
	NewContent  string    `json:"new_content,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ChunkMeta describes one chunk produced by the semantic chunker and is
// attached to the metadata of the memory extracted from it.
type ChunkMeta struct {
	RunID       string `json:"run_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	ChunkSize   int    `json:"chunk_size"`
	HasOverlap  bool   `json:"has_overlap"`
}

// ExtractedAction is what the LLM extractor returns for one candidate fact.
type ExtractedAction string

const (
	ActionAdd    ExtractedAction = "ADD"
	ActionUpdate ExtractedAction = "UPDATE"
	ActionNone   ExtractedAction = "NONE"
)

// ExtractedMemory is one item returned by the extraction LLM call.
type ExtractedMemory struct {
	Content string          `json:"content"`
	Action  ExtractedAction `json:"action"`
}

// ExtractionResult pairs a stored/updated memory with the event it produced.
type ExtractionResult struct {
	ID        string        `json:"id"`
	Memory    Memory        `json:"memory"`
	Event     *HistoryEvent `json:"event,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// SearchResult is one ranked hit from a semantic search.
type SearchResult struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Score     float32                `json:"score"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
