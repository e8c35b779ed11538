package timeline

import (
	"errors"
	"math"

	"github.com/framefold/timeline-engine/internal/models"
)

const (
	// DefaultSnapThreshold is the maximum distance in seconds for magnetic
	// alignment to a neighboring segment edge
	DefaultSnapThreshold = 0.5

	// The timeline origin is a stickier anchor than ordinary edges
	zeroSnapMultiplier = 2
)

// ErrOverlap signals that the resolved interval collides with an existing
// segment in the target layer. Callers decide whether to cancel the gesture
// or push past the neighbor (see PlaceDrop).
var ErrOverlap = errors.New("placement overlaps an existing segment")

// Candidate describes a segment being inserted or moved
type Candidate struct {
	Type           models.SegmentType
	Duration       float64
	PreferredStart float64
	PreferredLayer int
	// ExcludeID removes the segment being moved from snap candidates and
	// overlap checks
	ExcludeID string
}

// Options tune a single placement computation
type Options struct {
	// SnapThreshold in seconds; zero means DefaultSnapThreshold
	SnapThreshold float64
	DisableSnap   bool
}

// Placement is a resolved position for a candidate segment
type Placement struct {
	StartTime float64
	Layer     int
	Snap      *models.SnapIndicator
}

type snapCandidate struct {
	time  float64 // snap target time on the timeline
	start float64 // resulting segment start if chosen
	layer int
	edge  models.SnapEdge
	dist  float64
}

// ComputePlacement resolves the start time for a candidate segment, applying
// magnetic snapping to neighboring segment edges and the timeline origin,
// then rejecting positions that overlap the target layer. Pure function; the
// timeline is not modified.
func ComputePlacement(tl models.Timeline, c Candidate, opts Options) (Placement, error) {
	if c.Duration <= 0 {
		return Placement{}, ErrInvalidDuration
	}

	start := c.PreferredStart
	if start < 0 {
		start = 0
	}

	placement := Placement{StartTime: start, Layer: c.PreferredLayer}

	if !opts.DisableSnap {
		if best := bestSnap(tl, c, start, opts); best != nil {
			placement.StartTime = best.start
			placement.Snap = &models.SnapIndicator{
				Time:  best.time,
				Layer: best.layer,
				Edge:  best.edge,
			}
		}
	}

	if HasOverlap(tl, placement.Layer, placement.StartTime, c.Duration, c.ExcludeID) {
		return Placement{}, ErrOverlap
	}
	return placement, nil
}

// PlaceDrop resolves a fresh drop from the media library. Where a moved
// segment would be rejected on overlap, a dropped one is pushed forward past
// each conflicting neighbor until a free interval is found.
func PlaceDrop(tl models.Timeline, c Candidate, opts Options) (Placement, error) {
	placement, err := ComputePlacement(tl, c, opts)
	if err == nil {
		return placement, nil
	}
	if !errors.Is(err, ErrOverlap) {
		return Placement{}, err
	}

	start := c.PreferredStart
	if start < 0 {
		start = 0
	}
	probe := models.Segment{StartTime: start, Duration: c.Duration}
	for {
		shifted := false
		for _, seg := range tl.Layers[c.PreferredLayer] {
			if seg.ID == c.ExcludeID {
				continue
			}
			if probe.Overlaps(seg) {
				probe.StartTime = seg.EndTime()
				shifted = true
			}
		}
		if !shifted {
			break
		}
	}
	return Placement{StartTime: probe.StartTime, Layer: c.PreferredLayer}, nil
}

// bestSnap picks the closest snap candidate within threshold. Candidates are
// every other segment's start and end edge, compared against both edges of
// the dragged segment, plus a synthetic point at time zero with a doubled
// threshold. Ties break on smaller candidate time, then lower layer index.
func bestSnap(tl models.Timeline, c Candidate, start float64, opts Options) *snapCandidate {
	threshold := opts.SnapThreshold
	if threshold <= 0 {
		threshold = DefaultSnapThreshold
	}
	end := start + c.Duration

	var best *snapCandidate
	consider := func(cand snapCandidate) {
		if cand.start < 0 {
			return
		}
		if best == nil ||
			cand.dist < best.dist ||
			(cand.dist == best.dist && cand.time < best.time) ||
			(cand.dist == best.dist && cand.time == best.time && cand.layer < best.layer) {
			cp := cand
			best = &cp
		}
	}

	// Timeline origin: start edge only, double threshold
	if d := math.Abs(start); d <= threshold*zeroSnapMultiplier {
		consider(snapCandidate{time: 0, start: 0, layer: c.PreferredLayer, edge: models.SnapEdgeStart, dist: d})
	}

	for _, layerIdx := range allLayerIndices(tl) {
		for _, seg := range tl.Layers[layerIdx] {
			if seg.ID == c.ExcludeID {
				continue
			}
			for _, point := range []float64{seg.StartTime, seg.EndTime()} {
				if d := math.Abs(point - start); d <= threshold {
					consider(snapCandidate{time: point, start: point, layer: layerIdx, edge: models.SnapEdgeStart, dist: d})
				}
				if d := math.Abs(point - end); d <= threshold {
					consider(snapCandidate{time: point, start: point - c.Duration, layer: layerIdx, edge: models.SnapEdgeEnd, dist: d})
				}
			}
		}
	}
	return best
}

// NormalizeLayer coerces a requested layer index into the segment type's
// class: audio segments live on negative layers, video/image/text segments
// on non-negative ones
func NormalizeLayer(class models.SegmentType, layer int) int {
	if class == models.SegmentTypeAudio {
		if layer >= 0 {
			return -1
		}
		return layer
	}
	if layer < 0 {
		return 0
	}
	return layer
}

func allLayerIndices(tl models.Timeline) []int {
	out := tl.VideoLayerIndices()
	return append(out, tl.AudioLayerIndices()...)
}

// Viewport maps renderer pixel coordinates to timeline coordinates. The
// renderer supplies the layer row order it currently displays; the engine
// never assumes a particular zoom level or row arrangement.
type Viewport struct {
	PixelsPerSecond float64
	RowHeight       float64
	// VideoLayers lists non-negative layer indices top row first
	VideoLayers []int
	// AudioLayers lists negative layer indices, rendered below the video
	// rows, first audio layer (-1) first
	AudioLayers []int
}

// TimeAt converts a horizontal pixel position to timeline seconds,
// compensating for the grab offset within the dragged segment
func (v Viewport) TimeAt(x float64, grabOffset float64) float64 {
	if v.PixelsPerSecond <= 0 {
		return 0
	}
	return x/v.PixelsPerSecond - grabOffset
}

// LayerAt resolves a vertical pixel position to a layer index within the
// segment type's class: audio segments only resolve to negative layers,
// everything else only to non-negative ones. A position outside the class's
// rows clamps to the nearest row of that class, except above the top video
// row (requests a new video layer, max+1) and below the last audio row
// (requests a new audio layer, min-1).
func (v Viewport) LayerAt(y float64, class models.SegmentType) int {
	if class == models.SegmentTypeAudio {
		return v.audioLayerAt(y)
	}
	return v.videoLayerAt(y)
}

func (v Viewport) videoLayerAt(y float64) int {
	if v.RowHeight <= 0 || len(v.VideoLayers) == 0 {
		return 0
	}
	if y < 0 {
		return maxOf(v.VideoLayers) + 1
	}

	row := int(math.Floor(y / v.RowHeight))
	if row < len(v.VideoLayers) {
		return v.VideoLayers[row]
	}
	// dragged past the video rows: clamp to the bottom video row
	return v.VideoLayers[len(v.VideoLayers)-1]
}

func (v Viewport) audioLayerAt(y float64) int {
	if v.RowHeight <= 0 || len(v.AudioLayers) == 0 {
		return -1
	}

	row := int(math.Floor(y/v.RowHeight)) - len(v.VideoLayers)
	if row < 0 {
		// dragged above the audio rows: clamp to the first audio row
		return v.AudioLayers[0]
	}
	if row < len(v.AudioLayers) {
		return v.AudioLayers[row]
	}
	return minOf(v.AudioLayers) - 1
}

func maxOf(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
