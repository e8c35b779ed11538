package draft

import (
	"testing"

	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/models"
	"github.com/framefold/timeline-engine/internal/remote"
)

func TestSaveLoadDiscard(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	state := remote.TimelineState{
		Segments: []models.Segment{{ID: "v1", Type: models.SegmentTypeVideo, StartTime: 0, Duration: 10}},
	}
	if err := store.Save("proj-1", state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	draft, found, err := store.Load("proj-1")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if draft.ProjectID != "proj-1" {
		t.Errorf("ProjectID = %q", draft.ProjectID)
	}
	if len(draft.TimelineState.Segments) != 1 || draft.TimelineState.Segments[0].ID != "v1" {
		t.Errorf("unexpected state: %+v", draft.TimelineState)
	}
	if draft.SavedAt.IsZero() {
		t.Error("SavedAt not stamped")
	}

	if err := store.Discard("proj-1"); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, found, _ := store.Load("proj-1"); found {
		t.Error("draft should be gone after Discard")
	}
}

func TestLoadMissingDraft(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	if _, found, err := store.Load("nope"); err != nil || found {
		t.Errorf("missing draft: found=%v err=%v", found, err)
	}
}

func TestDiscardMissingDraftIsNoop(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	if err := store.Discard("nope"); err != nil {
		t.Errorf("Discard of a missing draft: %v", err)
	}
}

func TestSaveReplacesEarlierDraft(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())

	if err := store.Save("proj-1", remote.TimelineState{
		Segments: []models.Segment{{ID: "old"}},
	}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := store.Save("proj-1", remote.TimelineState{
		Segments: []models.Segment{{ID: "new"}},
	}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	draft, _, err := store.Load("proj-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(draft.TimelineState.Segments) != 1 || draft.TimelineState.Segments[0].ID != "new" {
		t.Errorf("latest draft should win: %+v", draft.TimelineState)
	}
}
