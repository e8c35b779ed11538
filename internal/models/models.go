package models

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// SegmentType identifies what kind of media a segment plays
type SegmentType string

const (
	SegmentTypeVideo SegmentType = "video"
	SegmentTypeAudio SegmentType = "audio"
	SegmentTypeText  SegmentType = "text"
	SegmentTypeImage SegmentType = "image"
)

// Default transform values applied to freshly created segments
const (
	DefaultPositionX = 50.0
	DefaultPositionY = 50.0
	DefaultScale     = 1.0
	DefaultSpeed     = 1.0
)

// Filter is a named video filter applied server-side during rendering
type Filter struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Keyframe is a timed property value on an audio segment (e.g. volume ramps)
type Keyframe struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Segment is a single placed media/text unit on the timeline.
//
// StartTime and Duration are timeline-relative seconds; the source window
// (StartTimeWithinSource, EndTimeWithinSource) is the trim range into the
// original asset. TimelineStartTime/TimelineEndTime are derived mirrors of
// StartTime and StartTime+Duration kept in sync for the wire format.
type Segment struct {
	ID       string      `json:"id"`
	Type     SegmentType `json:"type"`
	Layer    int         `json:"layer"`
	Pending  bool        `json:"pending,omitempty"`

	StartTime         float64 `json:"startTime"`
	Duration          float64 `json:"duration"`
	TimelineStartTime float64 `json:"timelineStartTime"`
	TimelineEndTime   float64 `json:"timelineEndTime"`

	StartTimeWithinSource float64 `json:"startTimeWithinSource"`
	EndTimeWithinSource   float64 `json:"endTimeWithinSource"`

	// Transform (video/image/text)
	PositionX float64 `json:"positionX"`
	PositionY float64 `json:"positionY"`
	Scale     float64 `json:"scale"`
	Rotation  float64 `json:"rotation"`

	DisplayName string `json:"displayName,omitempty"`

	// Video
	FilePath string   `json:"filePath,omitempty"`
	Speed    float64  `json:"speed,omitempty"`
	Filters  []Filter `json:"filters,omitempty"`

	// Audio
	FileName     string                `json:"fileName,omitempty"`
	Volume       float64               `json:"volume,omitempty"`
	WaveformPath string                `json:"waveformJsonPath,omitempty"`
	Keyframes    map[string][]Keyframe `json:"keyframes,omitempty"`

	// Text
	Text            string  `json:"text,omitempty"`
	FontFamily      string  `json:"fontFamily,omitempty"`
	FontSize        float64 `json:"fontSize,omitempty"`
	FontColor       string  `json:"fontColor,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty"`
}

// EndTime returns the timeline-relative end of the segment
func (s Segment) EndTime() float64 {
	return s.StartTime + s.Duration
}

// EffectiveSpeed returns the playback speed, defaulting to 1.0 for
// non-video types or unset values
func (s Segment) EffectiveSpeed() float64 {
	if s.Type != SegmentTypeVideo || s.Speed <= 0 {
		return DefaultSpeed
	}
	return s.Speed
}

// Overlaps reports whether the two segments' timeline intervals intersect.
// Intervals are half-open, so touching edges do not overlap.
func (s Segment) Overlaps(other Segment) bool {
	return s.StartTime < other.EndTime() && other.StartTime < s.EndTime()
}

// SyncDerived recomputes TimelineStartTime/TimelineEndTime from
// StartTime and Duration
func (s *Segment) SyncDerived() {
	s.TimelineStartTime = s.StartTime
	s.TimelineEndTime = s.StartTime + s.Duration
}

// ApplyDefaults fills zero-valued transform properties with their defaults.
// Called once at creation; later edits may legitimately set zero values.
func (s *Segment) ApplyDefaults() {
	if s.PositionX == 0 {
		s.PositionX = DefaultPositionX
	}
	if s.PositionY == 0 {
		s.PositionY = DefaultPositionY
	}
	if s.Scale == 0 {
		s.Scale = DefaultScale
	}
	if s.Type == SegmentTypeVideo && s.Speed == 0 {
		s.Speed = DefaultSpeed
	}
	if s.Type == SegmentTypeAudio && s.Volume == 0 {
		s.Volume = 1.0
	}
}

// Clone returns a deep copy of the segment
func (s Segment) Clone() Segment {
	out := s
	if s.Filters != nil {
		out.Filters = make([]Filter, len(s.Filters))
		copy(out.Filters, s.Filters)
	}
	if s.Keyframes != nil {
		out.Keyframes = make(map[string][]Keyframe, len(s.Keyframes))
		for k, frames := range s.Keyframes {
			cp := make([]Keyframe, len(frames))
			copy(cp, frames)
			out.Keyframes[k] = cp
		}
	}
	return out
}

// Layer is an ordered (by insertion, not by time) collection of
// non-overlapping segments sharing a layer index
type Layer []Segment

func (l Layer) Clone() Layer {
	if l == nil {
		return nil
	}
	out := make(Layer, len(l))
	for i, seg := range l {
		out[i] = seg.Clone()
	}
	return out
}

// Timeline is the full project state: layer index → segments. Non-negative
// indices hold video/image/text layers, negative indices hold audio layers
// (-1 is the first audio layer).
type Timeline struct {
	Layers map[int]Layer `json:"layers"`
}

// NewTimeline returns an empty timeline
func NewTimeline() Timeline {
	return Timeline{Layers: map[int]Layer{}}
}

// Clone returns a deep copy safe for snapshotting
func (t Timeline) Clone() Timeline {
	out := Timeline{Layers: make(map[int]Layer, len(t.Layers))}
	for idx, layer := range t.Layers {
		out.Layers[idx] = layer.Clone()
	}
	return out
}

// TotalDuration returns the end time of the last segment across all layers,
// 0 when the timeline is empty
func (t Timeline) TotalDuration() float64 {
	var max float64
	for _, layer := range t.Layers {
		for _, seg := range layer {
			if end := seg.EndTime(); end > max {
				max = end
			}
		}
	}
	return max
}

// Find locates a segment by id, returning it with its layer index
func (t Timeline) Find(id string) (Segment, int, bool) {
	for idx, layer := range t.Layers {
		for _, seg := range layer {
			if seg.ID == id {
				return seg.Clone(), idx, true
			}
		}
	}
	return Segment{}, 0, false
}

// VideoLayerIndices returns the non-negative layer indices in ascending order
func (t Timeline) VideoLayerIndices() []int {
	return t.layerIndices(func(i int) bool { return i >= 0 })
}

// AudioLayerIndices returns the negative layer indices in descending order
// (-1 first, then -2, ...)
func (t Timeline) AudioLayerIndices() []int {
	idx := t.layerIndices(func(i int) bool { return i < 0 })
	// descending: -1 before -2
	for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

func (t Timeline) layerIndices(keep func(int) bool) []int {
	var out []int
	for idx := range t.Layers {
		if keep(idx) {
			out = append(out, idx)
		}
	}
	// insertion order of map keys is random
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// SnapEdge marks which edge of the dragged segment a snap aligns
type SnapEdge string

const (
	SnapEdgeStart SnapEdge = "start"
	SnapEdgeEnd   SnapEdge = "end"
)

// SnapIndicator is a transient visual guide produced during a drag gesture
type SnapIndicator struct {
	Time  float64  `json:"time"`
	Layer int      `json:"layer"`
	Edge  SnapEdge `json:"edge"`
}

// Round3 rounds seconds to millisecond precision. Every time value crossing
// the wire goes through this; the server does not see finer precision.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

const pendingIDPrefix = "pending-"

// NewPendingID generates a client-side temporary id, reconciled against
// the server-assigned id once the create call completes
func NewPendingID() string {
	return pendingIDPrefix + uuid.New().String()
}

// IsPendingID reports whether id is a client-generated temporary id
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, pendingIDPrefix)
}
