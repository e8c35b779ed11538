package timeline

import (
	"errors"
	"fmt"

	"github.com/framefold/timeline-engine/internal/models"
)

// MinSplitMargin is the minimum distance in seconds from either segment edge
// for a split point. Prevents degenerate near-zero-length parts. The
// boundary is inclusive: a split exactly MinSplitMargin from an edge is
// accepted and yields a part of exactly that length.
const MinSplitMargin = 0.1

// ErrSplitMargin rejects split points too close to a segment edge
var ErrSplitMargin = errors.New("split point too close to segment edge")

// SplitResult holds the two contiguous parts produced by a split. First
// keeps the original id; Second carries a pending id until the server
// confirms the create call.
type SplitResult struct {
	First  models.Segment
	Second models.Segment
}

// Split divides a segment into two contiguous parts at an absolute timeline
// time. The parts' source windows are adjacent and cover exactly the original
// window; transform and style properties are copied to both parts unchanged.
func Split(seg models.Segment, clickTime float64) (SplitResult, error) {
	offset := clickTime - seg.StartTime
	if offset < MinSplitMargin || offset > seg.Duration-MinSplitMargin {
		return SplitResult{}, fmt.Errorf("split %s at %.3fs into %.3fs segment: %w",
			seg.ID, offset, seg.Duration, ErrSplitMargin)
	}

	speed := seg.EffectiveSpeed()
	sourceSplit := seg.StartTimeWithinSource + offset*speed

	first := seg.Clone()
	first.Duration = offset
	first.EndTimeWithinSource = sourceSplit
	first.SyncDerived()

	second := seg.Clone()
	second.ID = models.NewPendingID()
	second.Pending = true
	second.StartTime = seg.StartTime + offset
	second.Duration = seg.Duration - offset
	second.StartTimeWithinSource = sourceSplit
	second.SyncDerived()

	return SplitResult{First: first, Second: second}, nil
}
