package v1

import "time"

// ContextEntry is one stored commit summary.
type ContextEntry struct {
	CommitHash   string    `json:"commit_hash"`
	Message      string    `json:"message"`
	CommitDate   time.Time `json:"commit_date"`
	Summary      string    `json:"summary"`
	FilesChanged []string  `json:"files_changed"`
	KeyDetails   []string  `json:"key_details,omitempty"`
	Technologies []string  `json:"technologies,omitempty"`
	Impact       string    `json:"impact,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MemoryEntry is a short-lived copy of a summary.
type MemoryEntry struct {
	CommitHash string    `json:"commit_hash"`
	Content    string    `json:"content"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SyncOptions selects the commits to process. From and Last are exclusive;
// with neither set the configured default range is used.
type SyncOptions struct {
	From       string
	Last       int
	BestEffort bool
}

// Failure describes a commit that could not be stored.
type Failure struct {
	Hash  string `json:"hash"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	RunID      string    `json:"run_id"`
	Candidates int       `json:"candidates"`
	Stored     int       `json:"stored"`
	Skipped    int       `json:"skipped"`
	Truncated  int       `json:"truncated"`
	Failed     []Failure `json:"failed"`
	LastStored string    `json:"last_stored,omitempty"`
}

// Status is a snapshot of the workspace.
type Status struct {
	TotalCommits   int    `json:"total_commits"`
	Stored         int64  `json:"stored"`
	LastProcessed  string `json:"last_processed,omitempty"`
	LiveMemory     int    `json:"live_memory"`
	Endpoint       string `json:"endpoint"`
	ModelAvailable bool   `json:"model_available"`
}
