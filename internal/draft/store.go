// Package draft persists the working timeline to local disk when the store
// of record is unreachable (expired session, network outage), so edits made
// while persistence is blocked survive a process restart.
package draft

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/remote"
)

// Store writes timeline drafts as JSON files, one per project
type Store struct {
	dir    string
	logger *zap.Logger
}

// Draft is a saved working copy with its capture time
type Draft struct {
	ProjectID     string               `json:"project_id"`
	SavedAt       time.Time            `json:"saved_at"`
	TimelineState remote.TimelineState `json:"timeline_state"`
}

// NewStore creates a draft store rooted at dir
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Initialize creates the draft directory
func (s *Store) Initialize() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create draft directory %s: %w", s.dir, err)
	}
	return nil
}

// Save writes the current timeline state for a project, replacing any
// earlier draft
func (s *Store) Save(projectID string, state remote.TimelineState) error {
	draft := Draft{
		ProjectID:     projectID,
		SavedAt:       time.Now(),
		TimelineState: state,
	}

	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	path := s.path(projectID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write draft file: %w", err)
	}

	s.logger.Info("Saved local draft", zap.String("projectId", projectID), zap.String("path", path))
	return nil
}

// Load reads the draft for a project. The second return is false when no
// draft exists.
func (s *Store) Load(projectID string) (Draft, bool, error) {
	data, err := os.ReadFile(s.path(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return Draft{}, false, nil
		}
		return Draft{}, false, fmt.Errorf("failed to read draft: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return Draft{}, false, fmt.Errorf("failed to parse draft: %w", err)
	}
	return draft, true, nil
}

// Discard removes the draft for a project once the store of record has the
// state again
func (s *Store) Discard(projectID string) error {
	err := os.Remove(s.path(projectID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove draft: %w", err)
	}
	return nil
}

func (s *Store) path(projectID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("draft-%s.json", projectID))
}
