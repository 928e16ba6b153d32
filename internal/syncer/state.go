package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report records what a single run observed and did. The final report of a
// run is persisted as JSON so operators can inspect the last sync outcome.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// LocalBefore and Upstream are the revision pointers compared during
	// change detection.
	LocalBefore string `json:"local_before,omitempty"`
	Upstream    string `json:"upstream,omitempty"`

	// UpToDate is set when the pointers were equal and nothing was done.
	UpToDate bool `json:"up_to_date"`

	// Aborted is set when the operator declined the pre-merge gate.
	Aborted bool `json:"aborted,omitempty"`

	BackupBranch string `json:"backup_branch,omitempty"`

	PendingPaths      int  `json:"pending_paths"`
	Conflicted        bool `json:"conflicted"`
	ProtectedRestored int  `json:"protected_restored"`

	WatchedChanged    int  `json:"watched_changed"`
	IndexRebuilt      bool `json:"index_rebuilt"`
	DeployDataRebuilt bool `json:"deploy_data_rebuilt"`
	RebuildCommitted  bool `json:"rebuild_committed"`

	PushDeclined bool `json:"push_declined,omitempty"`
	Pushed       bool `json:"pushed"`
}

// WriteReport persists the report as indented JSON at path, creating parent
// directories as needed.
func WriteReport(path string, rep *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// LoadReport reads a previously written report.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	return &rep, nil
}
