package timeline

import (
	"github.com/framefold/timeline-engine/internal/models"
)

// History is a linear undo/redo stack over full-timeline snapshots. The
// cursor always points at the currently-displayed snapshot; recording a new
// mutation discards any redoable entries beyond it.
type History struct {
	entries []models.Timeline
	cursor  int
}

// NewHistory starts a history whose base entry is the given timeline
func NewHistory(base models.Timeline) *History {
	return &History{
		entries: []models.Timeline{base.Clone()},
		cursor:  0,
	}
}

// Record appends a snapshot after a committed mutation, truncating the
// redo branch
func (h *History) Record(tl models.Timeline) {
	h.entries = append(h.entries[:h.cursor+1], tl.Clone())
	h.cursor = len(h.entries) - 1
}

// Undo steps the cursor back and returns that snapshot. The second return
// is false when there is nothing to undo.
func (h *History) Undo() (models.Timeline, bool) {
	if h.cursor == 0 {
		return models.Timeline{}, false
	}
	h.cursor--
	return h.entries[h.cursor].Clone(), true
}

// Redo steps the cursor forward and returns that snapshot
func (h *History) Redo() (models.Timeline, bool) {
	if h.cursor >= len(h.entries)-1 {
		return models.Timeline{}, false
	}
	h.cursor++
	return h.entries[h.cursor].Clone(), true
}

// Amend replaces the current snapshot in place without truncating the redo
// branch. Used for non-semantic corrections that must not become their own
// undo step, like swapping a pending id for the server-assigned one.
func (h *History) Amend(tl models.Timeline) {
	h.entries[h.cursor] = tl.Clone()
}

// Reset discards all entries and starts over from a new base. Used after a
// server resync: editing history does not survive a reload.
func (h *History) Reset(base models.Timeline) {
	h.entries = []models.Timeline{base.Clone()}
	h.cursor = 0
}

// CanUndo reports whether an earlier snapshot exists
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether a later snapshot exists
func (h *History) CanRedo() bool { return h.cursor < len(h.entries)-1 }

// Len returns the number of stored snapshots
func (h *History) Len() int { return len(h.entries) }
