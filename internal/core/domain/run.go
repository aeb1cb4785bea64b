package domain

import "time"

// Retrieval run kinds.
const (
	RunKindMetadata = "metadata"
	RunKindMessages = "messages"
)

// Retrieval run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// RetrievalRun records one invocation of a retrieval command.
type RetrievalRun struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	SeedList   string    `json:"seed_list"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Channels   int       `json:"channels"`
	Records    int       `json:"records"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// SaveResult summarises a deduplicated write.
type SaveResult struct {
	Inserted   int
	Duplicates int
	Updated    int
}

// Add accumulates another result.
func (r *SaveResult) Add(other SaveResult) {
	r.Inserted += other.Inserted
	r.Duplicates += other.Duplicates
	r.Updated += other.Updated
}
