package remote

import (
	"encoding/json"
	"fmt"

	"github.com/framefold/timeline-engine/internal/models"
)

// TimelineState is the canonical wire form of a timeline: segments grouped
// by kind, layer recorded per segment
type TimelineState struct {
	Segments      []models.Segment `json:"segments"`
	ImageSegments []models.Segment `json:"imageSegments,omitempty"`
	TextSegments  []models.Segment `json:"textSegments,omitempty"`
	AudioSegments []models.Segment `json:"audioSegments,omitempty"`
}

// NormalizeTimelineState decodes a timelineState payload that the server
// returns sometimes as a JSON object and sometimes double-encoded as a JSON
// string. The ambiguity stops here; the rest of the engine only sees the
// typed form.
func NormalizeTimelineState(raw json.RawMessage) (TimelineState, error) {
	var state TimelineState
	if len(raw) == 0 || string(raw) == "null" {
		return state, nil
	}

	data := []byte(raw)
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return state, fmt.Errorf("failed to unquote timelineState: %w", err)
		}
		data = []byte(inner)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("failed to parse timelineState: %w", err)
	}
	return state, nil
}

// ToTimeline converts wire state into the in-memory layered form, stamping
// segment types that the grouped arrays imply
func (s TimelineState) ToTimeline() models.Timeline {
	tl := models.NewTimeline()
	appendAll := func(segs []models.Segment, fallback models.SegmentType) {
		for _, seg := range segs {
			seg = seg.Clone()
			if seg.Type == "" {
				seg.Type = fallback
			}
			// Some writers persist only the timeline interval. Recover the
			// canonical fields before re-deriving the mirrors.
			if seg.Duration == 0 && seg.TimelineEndTime > seg.TimelineStartTime {
				seg.StartTime = seg.TimelineStartTime
				seg.Duration = seg.TimelineEndTime - seg.TimelineStartTime
			}
			seg.SyncDerived()
			tl.Layers[seg.Layer] = append(tl.Layers[seg.Layer], seg)
		}
	}
	appendAll(s.Segments, models.SegmentTypeVideo)
	appendAll(s.ImageSegments, models.SegmentTypeImage)
	appendAll(s.TextSegments, models.SegmentTypeText)
	appendAll(s.AudioSegments, models.SegmentTypeAudio)
	return tl
}

// StateFromTimeline regroups the layered in-memory form into wire state
func StateFromTimeline(tl models.Timeline) TimelineState {
	var state TimelineState
	for _, idx := range append(tl.VideoLayerIndices(), tl.AudioLayerIndices()...) {
		for _, seg := range tl.Layers[idx] {
			seg = seg.Clone()
			switch seg.Type {
			case models.SegmentTypeImage:
				state.ImageSegments = append(state.ImageSegments, seg)
			case models.SegmentTypeText:
				state.TextSegments = append(state.TextSegments, seg)
			case models.SegmentTypeAudio:
				state.AudioSegments = append(state.AudioSegments, seg)
			default:
				state.Segments = append(state.Segments, seg)
			}
		}
	}
	if state.Segments == nil {
		state.Segments = []models.Segment{}
	}
	return state
}

// roundState rounds every time field to millisecond precision before
// transmission; the server never sees finer precision
func roundState(state TimelineState) TimelineState {
	roundAll := func(segs []models.Segment) []models.Segment {
		out := make([]models.Segment, len(segs))
		for i, seg := range segs {
			seg = seg.Clone()
			seg.StartTime = models.Round3(seg.StartTime)
			seg.Duration = models.Round3(seg.Duration)
			seg.StartTimeWithinSource = models.Round3(seg.StartTimeWithinSource)
			seg.EndTimeWithinSource = models.Round3(seg.EndTimeWithinSource)
			seg.SyncDerived()
			seg.TimelineStartTime = models.Round3(seg.TimelineStartTime)
			seg.TimelineEndTime = models.Round3(seg.TimelineEndTime)
			out[i] = seg
		}
		return out
	}
	return TimelineState{
		Segments:      roundAll(state.Segments),
		ImageSegments: roundAllOrNil(state.ImageSegments, roundAll),
		TextSegments:  roundAllOrNil(state.TextSegments, roundAll),
		AudioSegments: roundAllOrNil(state.AudioSegments, roundAll),
	}
}

func roundAllOrNil(segs []models.Segment, round func([]models.Segment) []models.Segment) []models.Segment {
	if segs == nil {
		return nil
	}
	return round(segs)
}
