package models

import (
	"testing"
)

func TestRound3(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{1.23456, 1.235},
		{1.2344, 1.234},
		{0, 0},
		{9.9995, 10.0},
		{-1.23456, -1.235},
	}

	for _, tt := range tests {
		if got := Round3(tt.input); got != tt.expected {
			t.Errorf("Round3(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestRound3Idempotent(t *testing.T) {
	values := []float64{1.23456, 0.0004999, 10.333333, 59.9999, 1234.56789}
	for _, v := range values {
		once := Round3(v)
		twice := Round3(once)
		if once != twice {
			t.Errorf("Round3 not idempotent for %v: %v != %v", v, once, twice)
		}
	}
}

func TestSegmentOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Segment
		want bool
	}{
		{
			name: "disjoint",
			a:    Segment{StartTime: 0, Duration: 5},
			b:    Segment{StartTime: 10, Duration: 5},
			want: false,
		},
		{
			name: "touching edges",
			a:    Segment{StartTime: 0, Duration: 5},
			b:    Segment{StartTime: 5, Duration: 5},
			want: false,
		},
		{
			name: "partial overlap",
			a:    Segment{StartTime: 0, Duration: 6},
			b:    Segment{StartTime: 5, Duration: 5},
			want: true,
		},
		{
			name: "contained",
			a:    Segment{StartTime: 0, Duration: 10},
			b:    Segment{StartTime: 2, Duration: 3},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() not symmetric: reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSyncDerived(t *testing.T) {
	seg := Segment{StartTime: 3.5, Duration: 2.25}
	seg.SyncDerived()

	if seg.TimelineStartTime != 3.5 {
		t.Errorf("TimelineStartTime = %v, want 3.5", seg.TimelineStartTime)
	}
	if seg.TimelineEndTime != 5.75 {
		t.Errorf("TimelineEndTime = %v, want 5.75", seg.TimelineEndTime)
	}
}

func TestApplyDefaults(t *testing.T) {
	video := Segment{Type: SegmentTypeVideo}
	video.ApplyDefaults()
	if video.PositionX != 50 || video.PositionY != 50 {
		t.Errorf("position defaults = (%v, %v), want (50, 50)", video.PositionX, video.PositionY)
	}
	if video.Scale != 1 {
		t.Errorf("scale default = %v, want 1", video.Scale)
	}
	if video.Speed != 1 {
		t.Errorf("speed default = %v, want 1", video.Speed)
	}

	audio := Segment{Type: SegmentTypeAudio}
	audio.ApplyDefaults()
	if audio.Volume != 1 {
		t.Errorf("volume default = %v, want 1", audio.Volume)
	}
}

func TestEffectiveSpeed(t *testing.T) {
	if got := (Segment{Type: SegmentTypeVideo, Speed: 2}).EffectiveSpeed(); got != 2 {
		t.Errorf("video speed = %v, want 2", got)
	}
	if got := (Segment{Type: SegmentTypeAudio, Speed: 2}).EffectiveSpeed(); got != 1 {
		t.Errorf("audio speed = %v, want 1", got)
	}
	if got := (Segment{Type: SegmentTypeVideo}).EffectiveSpeed(); got != 1 {
		t.Errorf("unset video speed = %v, want 1", got)
	}
}

func TestTimelineTotalDuration(t *testing.T) {
	tl := NewTimeline()
	if tl.TotalDuration() != 0 {
		t.Errorf("empty timeline duration = %v, want 0", tl.TotalDuration())
	}

	tl.Layers[0] = Layer{{ID: "a", StartTime: 0, Duration: 10}}
	tl.Layers[-1] = Layer{{ID: "b", StartTime: 5, Duration: 12}}
	if got := tl.TotalDuration(); got != 17 {
		t.Errorf("duration = %v, want 17", got)
	}
}

func TestTimelineCloneIsDeep(t *testing.T) {
	tl := NewTimeline()
	tl.Layers[0] = Layer{{ID: "a", StartTime: 0, Duration: 10, Filters: []Filter{{Name: "grayscale"}}}}

	cp := tl.Clone()
	cp.Layers[0][0].StartTime = 99
	cp.Layers[0][0].Filters[0].Name = "sepia"

	if tl.Layers[0][0].StartTime != 0 {
		t.Error("clone shares segment storage with original")
	}
	if tl.Layers[0][0].Filters[0].Name != "grayscale" {
		t.Error("clone shares filter storage with original")
	}
}

func TestLayerIndices(t *testing.T) {
	tl := NewTimeline()
	for _, idx := range []int{2, 0, -2, 1, -1} {
		tl.Layers[idx] = Layer{}
	}

	video := tl.VideoLayerIndices()
	if len(video) != 3 || video[0] != 0 || video[1] != 1 || video[2] != 2 {
		t.Errorf("video indices = %v, want [0 1 2]", video)
	}

	audio := tl.AudioLayerIndices()
	if len(audio) != 2 || audio[0] != -1 || audio[1] != -2 {
		t.Errorf("audio indices = %v, want [-1 -2]", audio)
	}
}

func TestPendingIDs(t *testing.T) {
	id := NewPendingID()
	if !IsPendingID(id) {
		t.Errorf("NewPendingID() = %q, not recognized as pending", id)
	}
	if IsPendingID("seg-123") {
		t.Error("server id misclassified as pending")
	}
	if id == NewPendingID() {
		t.Error("pending ids are not unique")
	}
}
