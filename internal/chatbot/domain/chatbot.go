package domain

import "encoding/json"

// Stage pipeline stage of a job
type Stage string

const (
	// StageCrawl fetching the resource
	StageCrawl Stage = "crawl"
	// StageEmbedding building embeddings
	StageEmbedding Stage = "embedding"
)

// JobStatus state of a crawl/embedding job
type JobStatus string

const (
	// JobRunning in progress
	JobRunning JobStatus = "running"
	// JobCompleted finished
	JobCompleted JobStatus = "completed"
	// JobFailed finished with an error
	JobFailed JobStatus = "failed"
)

// Terminal completed or failed
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CrawlProgress payload of crawl:* and embedding:* events
type CrawlProgress struct {
	JobID      string    `json:"jobId"`
	ResourceID string    `json:"resourceId,omitempty"`
	Stage      Stage     `json:"stage,omitempty"`
	Status     JobStatus `json:"status,omitempty"`
	Progress   float64   `json:"progress"`
	Processed  int       `json:"processed,omitempty"`
	Total      int       `json:"total,omitempty"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  string    `json:"updatedAt,omitempty"`
}

// ChatbotResource a knowledge source of the chatbot
type ChatbotResource struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	URL       string `json:"url,omitempty"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

const (
	// CrawlProgressEvent receive
	CrawlProgressEvent = "crawl:progress"
	// CrawlCompletedEvent receive
	CrawlCompletedEvent = "crawl:completed"
	// CrawlFailedEvent receive
	CrawlFailedEvent = "crawl:failed"
	// EmbeddingProgressEvent receive
	EmbeddingProgressEvent = "embedding:progress"
	// EmbeddingCompletedEvent receive
	EmbeddingCompletedEvent = "embedding:completed"
	// ResourceCreatedEvent receive
	ResourceCreatedEvent = "resource:created"
	// ResourceUpdatedEvent receive
	ResourceUpdatedEvent = "resource:updated"
	// ResourceDeletedEvent receive
	ResourceDeletedEvent = "resource:deleted"
)

// Events every chatbot namespace event, in relay order
var Events = []string{
	CrawlProgressEvent, CrawlCompletedEvent, CrawlFailedEvent,
	EmbeddingProgressEvent, EmbeddingCompletedEvent,
	ResourceCreatedEvent, ResourceUpdatedEvent, ResourceDeletedEvent,
}

// RelayEvent record published by crawler workers on the gateway's chatbot channel
type RelayEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
