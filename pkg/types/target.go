package types

import "time"

// TargetDescriptor describes one externally stored, version-controlled file
// that repodash can view and edit. The set of targets is fixed at startup.
type TargetDescriptor struct {
	// Key is the identifier used in URLs and audit records, e.g. "primary".
	Key string `yaml:"key" json:"key"`

	// Repo is the "owner/name" identifier of the repository holding the file.
	Repo string `yaml:"repo" json:"repo"`

	// FilePath is the path of the managed file within the repository.
	FilePath string `yaml:"file_path" json:"file_path"`

	// Token is the access credential used for all API calls against Repo.
	Token string `yaml:"token" json:"-"`

	// Name is the human-readable display name shown on the dashboard and
	// embedded in commit messages.
	Name string `yaml:"name" json:"name"`
}

// Snapshot is the current state of a target as fetched from the remote store.
// It is never persisted locally.
type Snapshot struct {
	// Content is the decoded file content.
	Content []byte `json:"content"`

	// VersionTag is the remote store's opaque concurrency token for this
	// revision. A write must present the tag from the most recent read or
	// the store rejects it.
	VersionTag string `json:"version_tag"`

	// LastModified is the timestamp of the newest history entry, if known.
	LastModified time.Time `json:"last_modified"`
}

// HistoryEntry is one past revision of a target.
type HistoryEntry struct {
	VersionID string    `json:"version_id"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Date      time.Time `json:"date"`
}

// TargetStatus reports connectivity of a single target.
type TargetStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// StatusResponse is the response of the status endpoint.
type StatusResponse struct {
	Targets map[string]TargetStatus `json:"targets"`
	Locked  bool                    `json:"locked"`
}
