package timeline

import (
	"errors"
	"math"
	"testing"

	"github.com/framefold/timeline-engine/internal/models"
)

func timelineWith(t *testing.T, segs ...models.Segment) models.Timeline {
	t.Helper()
	tl := models.NewTimeline()
	for _, seg := range segs {
		var err error
		tl, err = Insert(tl, seg)
		if err != nil {
			t.Fatalf("Insert(%s): %v", seg.ID, err)
		}
	}
	return tl
}

// End-to-end scenario: dropping a 10s video on an empty timeline at time 0.
func TestDropOnEmptyTimeline(t *testing.T) {
	tl := models.NewTimeline()

	p, err := ComputePlacement(tl, Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       10,
		PreferredStart: 0,
		PreferredLayer: 0,
	}, Options{})
	if err != nil {
		t.Fatalf("ComputePlacement: %v", err)
	}
	if p.StartTime != 0 || p.Layer != 0 {
		t.Errorf("placement = {%v, layer %d}, want {0, layer 0}", p.StartTime, p.Layer)
	}

	tl, _ = Insert(tl, models.Segment{ID: "a", Layer: p.Layer, StartTime: p.StartTime, Duration: 10})
	if got := tl.TotalDuration(); got != 10 {
		t.Errorf("totalDuration = %v, want 10", got)
	}
}

// End-to-end scenario: a second clip dropped near the first one's end edge
// snaps flush against it.
func TestDropSnapsToNeighborEnd(t *testing.T) {
	tl := timelineWith(t, models.Segment{ID: "a", Layer: 0, StartTime: 0, Duration: 10})

	p, err := ComputePlacement(tl, Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       5,
		PreferredStart: 9.8,
		PreferredLayer: 0,
	}, Options{})
	if err != nil {
		t.Fatalf("ComputePlacement: %v", err)
	}
	if p.StartTime != 10 {
		t.Errorf("snapped start = %v, want 10", p.StartTime)
	}
	if p.Snap == nil {
		t.Fatal("expected a snap indicator")
	}
	if p.Snap.Time != 10 || p.Snap.Edge != models.SnapEdgeStart {
		t.Errorf("indicator = %+v, want time 10 start edge", p.Snap)
	}

	tl, _ = Insert(tl, models.Segment{ID: "b", Layer: p.Layer, StartTime: p.StartTime, Duration: 5})
	if got := tl.TotalDuration(); got != 15 {
		t.Errorf("totalDuration = %v, want 15", got)
	}
}

func TestSnapToZeroStickiness(t *testing.T) {
	// A distant neighbor keeps ordinary snap candidates out of range
	tl := timelineWith(t, models.Segment{ID: "far", Layer: 1, StartTime: 100, Duration: 5})

	tests := []struct {
		name      string
		preferred float64
		wantStart float64
		wantSnap  bool
	}{
		{"inside doubled threshold", 0.9, 0, true},
		{"exactly at doubled threshold", 1.0, 0, true},
		{"beyond doubled threshold", 1.2, 1.2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ComputePlacement(tl, Candidate{
				Type:           models.SegmentTypeVideo,
				Duration:       5,
				PreferredStart: tt.preferred,
				PreferredLayer: 0,
			}, Options{})
			if err != nil {
				t.Fatalf("ComputePlacement: %v", err)
			}
			if p.StartTime != tt.wantStart {
				t.Errorf("start = %v, want %v", p.StartTime, tt.wantStart)
			}
			if (p.Snap != nil) != tt.wantSnap {
				t.Errorf("snap indicator presence = %v, want %v", p.Snap != nil, tt.wantSnap)
			}
		})
	}
}

func TestSnapEndEdgeAgainstNeighborStart(t *testing.T) {
	tl := timelineWith(t, models.Segment{ID: "a", Layer: 0, StartTime: 20, Duration: 10})

	// Dragged segment's end edge at 19.7 is 0.3s from the neighbor start at 20
	p, err := ComputePlacement(tl, Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       5,
		PreferredStart: 14.7,
		PreferredLayer: 0,
	}, Options{})
	if err != nil {
		t.Fatalf("ComputePlacement: %v", err)
	}
	if p.StartTime != 15 {
		t.Errorf("start = %v, want 15 (end edge aligned to 20)", p.StartTime)
	}
	if p.Snap == nil || p.Snap.Edge != models.SnapEdgeEnd || p.Snap.Time != 20 {
		t.Errorf("indicator = %+v, want end edge at 20", p.Snap)
	}
}

func TestSnapConsidersOtherLayers(t *testing.T) {
	tl := timelineWith(t, models.Segment{ID: "a", Layer: 3, StartTime: 8, Duration: 4})

	p, err := ComputePlacement(tl, Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       2,
		PreferredStart: 7.8,
		PreferredLayer: 0,
	}, Options{})
	if err != nil {
		t.Fatalf("ComputePlacement: %v", err)
	}
	if p.StartTime != 8 {
		t.Errorf("start = %v, want 8 (snapped across layers)", p.StartTime)
	}
	if p.Snap == nil || p.Snap.Layer != 3 {
		t.Errorf("indicator = %+v, want layer 3", p.Snap)
	}
}

func TestSnapDisabled(t *testing.T) {
	tl := timelineWith(t, models.Segment{ID: "a", Layer: 0, StartTime: 0, Duration: 10})

	p, err := ComputePlacement(tl, Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       5,
		PreferredStart: 10.2,
		PreferredLayer: 0,
	}, Options{DisableSnap: true})
	if err != nil {
		t.Fatalf("ComputePlacement: %v", err)
	}
	if p.StartTime != 10.2 || p.Snap != nil {
		t.Errorf("placement = %+v, want raw 10.2 without snap", p)
	}
}

func TestMoveRejectedOnOverlap(t *testing.T) {
	tl := timelineWith(t,
		models.Segment{ID: "a", Layer: 0, StartTime: 0, Duration: 10},
		models.Segment{ID: "b", Layer: 0, StartTime: 20, Duration: 5},
	)

	_, err := ComputePlacement(tl, Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       5,
		PreferredStart: 3,
		PreferredLayer: 0,
		ExcludeID:      "b",
	}, Options{DisableSnap: true})
	if !errors.Is(err, ErrOverlap) {
		t.Errorf("err = %v, want ErrOverlap", err)
	}
}

func TestMovedSegmentDoesNotSnapToItself(t *testing.T) {
	tl := timelineWith(t, models.Segment{ID: "a", Layer: 0, StartTime: 10, Duration: 5})

	p, err := ComputePlacement(tl, Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       5,
		PreferredStart: 10.3,
		PreferredLayer: 0,
		ExcludeID:      "a",
	}, Options{})
	if err != nil {
		t.Fatalf("ComputePlacement: %v", err)
	}
	if p.Snap != nil {
		t.Errorf("segment snapped to its own previous position: %+v", p.Snap)
	}
	if p.StartTime != 10.3 {
		t.Errorf("start = %v, want 10.3", p.StartTime)
	}
}

func TestPlaceDropShiftsPastConflicts(t *testing.T) {
	tl := timelineWith(t,
		models.Segment{ID: "a", Layer: 0, StartTime: 0, Duration: 10},
		models.Segment{ID: "b", Layer: 0, StartTime: 10, Duration: 5},
	)

	p, err := PlaceDrop(tl, Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       4,
		PreferredStart: 2,
		PreferredLayer: 0,
	}, Options{DisableSnap: true})
	if err != nil {
		t.Fatalf("PlaceDrop: %v", err)
	}
	if p.StartTime != 15 {
		t.Errorf("start = %v, want 15 (past both neighbors)", p.StartTime)
	}
}

func TestNegativePreferredStartClamped(t *testing.T) {
	tl := models.NewTimeline()
	p, err := ComputePlacement(tl, Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       5,
		PreferredStart: -3,
		PreferredLayer: 0,
	}, Options{DisableSnap: true})
	if err != nil {
		t.Fatalf("ComputePlacement: %v", err)
	}
	if p.StartTime != 0 {
		t.Errorf("start = %v, want clamped 0", p.StartTime)
	}
}

func TestViewportTimeAt(t *testing.T) {
	v := Viewport{PixelsPerSecond: 50, RowHeight: 40}

	if got := v.TimeAt(500, 0); got != 10 {
		t.Errorf("TimeAt(500, 0) = %v, want 10", got)
	}
	if got := v.TimeAt(500, 2.5); got != 7.5 {
		t.Errorf("TimeAt(500, 2.5) = %v, want 7.5", got)
	}
	if got := (Viewport{}).TimeAt(500, 0); got != 0 {
		t.Errorf("TimeAt with zero scale = %v, want 0", got)
	}
}

func TestViewportLayerAt(t *testing.T) {
	v := Viewport{
		PixelsPerSecond: 50,
		RowHeight:       40,
		VideoLayers:     []int{2, 1, 0}, // top row is the highest layer
		AudioLayers:     []int{-1, -2},
	}

	tests := []struct {
		name  string
		y     float64
		class models.SegmentType
		want  int
	}{
		{"above top row requests new video layer", -10, models.SegmentTypeVideo, 3},
		{"top video row", 10, models.SegmentTypeVideo, 2},
		{"middle video row", 50, models.SegmentTypeVideo, 1},
		{"bottom video row", 110, models.SegmentTypeVideo, 0},
		{"video dragged into audio rows clamps to bottom video row", 170, models.SegmentTypeVideo, 0},
		{"video dragged below everything clamps to bottom video row", 300, models.SegmentTypeVideo, 0},
		{"text resolves like video", 50, models.SegmentTypeText, 1},
		{"image resolves like video", 10, models.SegmentTypeImage, 2},
		{"first audio row", 130, models.SegmentTypeAudio, -1},
		{"second audio row", 170, models.SegmentTypeAudio, -2},
		{"below last audio row requests new audio layer", 210, models.SegmentTypeAudio, -3},
		{"audio dragged into video rows clamps to first audio row", 50, models.SegmentTypeAudio, -1},
		{"audio dragged above everything clamps to first audio row", -10, models.SegmentTypeAudio, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.LayerAt(tt.y, tt.class); got != tt.want {
				t.Errorf("LayerAt(%v, %s) = %d, want %d", tt.y, tt.class, got, tt.want)
			}
		})
	}
}

func TestViewportLayerAtEmptyTimeline(t *testing.T) {
	v := Viewport{RowHeight: 40}
	if got := v.LayerAt(-5, models.SegmentTypeVideo); got != 0 {
		t.Errorf("video LayerAt above empty = %d, want 0", got)
	}
	if got := v.LayerAt(10, models.SegmentTypeVideo); got != 0 {
		t.Errorf("video LayerAt on empty = %d, want 0", got)
	}
	if got := v.LayerAt(10, models.SegmentTypeAudio); got != -1 {
		t.Errorf("audio LayerAt on empty = %d, want -1", got)
	}
}

func TestNormalizeLayer(t *testing.T) {
	tests := []struct {
		class models.SegmentType
		layer int
		want  int
	}{
		{models.SegmentTypeVideo, 2, 2},
		{models.SegmentTypeVideo, 0, 0},
		{models.SegmentTypeVideo, -1, 0},
		{models.SegmentTypeText, -3, 0},
		{models.SegmentTypeImage, -1, 0},
		{models.SegmentTypeAudio, -2, -2},
		{models.SegmentTypeAudio, -1, -1},
		{models.SegmentTypeAudio, 0, -1},
		{models.SegmentTypeAudio, 3, -1},
	}

	for _, tt := range tests {
		if got := NormalizeLayer(tt.class, tt.layer); got != tt.want {
			t.Errorf("NormalizeLayer(%s, %d) = %d, want %d", tt.class, tt.layer, got, tt.want)
		}
	}
}

func TestSnapTieBreakIsDeterministic(t *testing.T) {
	// Two edges at identical distance from the dragged start: 9.5 (end of a)
	// and 10.5 (start of b) around a preferred start of 10. The earlier
	// candidate time wins.
	tl := timelineWith(t,
		models.Segment{ID: "a", Layer: 1, StartTime: 5, Duration: 4.5},
		models.Segment{ID: "b", Layer: 2, StartTime: 10.5, Duration: 5},
	)

	for i := 0; i < 20; i++ {
		p, err := ComputePlacement(tl, Candidate{
			Type:           models.SegmentTypeVideo,
			Duration:       100, // keep the end edge away from all candidates
			PreferredStart: 10,
			PreferredLayer: 0,
		}, Options{})
		if err != nil {
			t.Fatalf("ComputePlacement: %v", err)
		}
		if p.Snap == nil {
			t.Fatal("expected a snap indicator")
		}
		if math.Abs(p.StartTime-9.5) > 1e-9 {
			t.Fatalf("iteration %d: start = %v, want 9.5 (earlier candidate wins)", i, p.StartTime)
		}
	}
}
