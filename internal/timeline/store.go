// Package timeline holds the in-memory editing state engine: the segment
// store, the placement engine resolving drags and drops against layer
// occupancy and snap points, the split engine, and the undo/redo history.
package timeline

import (
	"errors"
	"fmt"

	"github.com/framefold/timeline-engine/internal/models"
)

var (
	// ErrSegmentNotFound is returned when an id does not exist in the timeline
	ErrSegmentNotFound = errors.New("segment not found")
	// ErrInvalidDuration is returned for zero or negative durations
	ErrInvalidDuration = errors.New("segment duration must be positive")
)

// Insert places a segment into its layer, returning a new timeline value.
// The previous timeline is never mutated. Overlap resolution is the placement
// engine's job; Insert trusts its caller.
func Insert(tl models.Timeline, seg models.Segment) (models.Timeline, error) {
	if seg.Duration <= 0 {
		return tl, ErrInvalidDuration
	}

	seg = seg.Clone()
	seg.SyncDerived()

	out := tl.Clone()
	if out.Layers == nil {
		out.Layers = map[int]models.Layer{}
	}
	out.Layers[seg.Layer] = append(out.Layers[seg.Layer], seg)
	return out, nil
}

// Update replaces a segment in place by id. If the layer index changed the
// segment moves between layers, keeping insertion order in the target layer.
func Update(tl models.Timeline, seg models.Segment) (models.Timeline, error) {
	if seg.Duration <= 0 {
		return tl, ErrInvalidDuration
	}

	_, currentLayer, ok := tl.Find(seg.ID)
	if !ok {
		return tl, fmt.Errorf("update %s: %w", seg.ID, ErrSegmentNotFound)
	}

	seg = seg.Clone()
	seg.SyncDerived()

	out := tl.Clone()
	if currentLayer == seg.Layer {
		layer := out.Layers[currentLayer]
		for i := range layer {
			if layer[i].ID == seg.ID {
				layer[i] = seg
				break
			}
		}
		return out, nil
	}

	out.Layers[currentLayer] = removeFromLayer(out.Layers[currentLayer], seg.ID)
	if len(out.Layers[currentLayer]) == 0 {
		delete(out.Layers, currentLayer)
	}
	out.Layers[seg.Layer] = append(out.Layers[seg.Layer], seg)
	return out, nil
}

// Remove deletes a segment by id, returning the new timeline and whether
// anything was removed. Emptied layers are dropped from the map.
func Remove(tl models.Timeline, id string) (models.Timeline, bool) {
	_, layerIdx, ok := tl.Find(id)
	if !ok {
		return tl, false
	}

	out := tl.Clone()
	out.Layers[layerIdx] = removeFromLayer(out.Layers[layerIdx], id)
	if len(out.Layers[layerIdx]) == 0 {
		delete(out.Layers, layerIdx)
	}
	return out, true
}

// Move relocates a segment to a new start time and layer
func Move(tl models.Timeline, id string, startTime float64, layer int) (models.Timeline, error) {
	seg, _, ok := tl.Find(id)
	if !ok {
		return tl, fmt.Errorf("move %s: %w", id, ErrSegmentNotFound)
	}

	seg.StartTime = startTime
	seg.Layer = layer
	return Update(tl, seg)
}

// ReplaceID swaps a segment's id, used when a pending client id is
// reconciled with the server-assigned one
func ReplaceID(tl models.Timeline, oldID, newID string) (models.Timeline, error) {
	_, layerIdx, ok := tl.Find(oldID)
	if !ok {
		return tl, fmt.Errorf("replace id %s: %w", oldID, ErrSegmentNotFound)
	}

	out := tl.Clone()
	layer := out.Layers[layerIdx]
	for i := range layer {
		if layer[i].ID == oldID {
			layer[i].ID = newID
			layer[i].Pending = false
			break
		}
	}
	return out, nil
}

// HasOverlap reports whether the interval [start, start+duration) intersects
// any segment in the given layer other than excludeID
func HasOverlap(tl models.Timeline, layer int, start, duration float64, excludeID string) bool {
	probe := models.Segment{StartTime: start, Duration: duration}
	for _, seg := range tl.Layers[layer] {
		if seg.ID == excludeID {
			continue
		}
		if probe.Overlaps(seg) {
			return true
		}
	}
	return false
}

func removeFromLayer(layer models.Layer, id string) models.Layer {
	out := make(models.Layer, 0, len(layer))
	for _, seg := range layer {
		if seg.ID != id {
			out = append(out, seg)
		}
	}
	return out
}
