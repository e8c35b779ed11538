package timeline

import (
	"errors"
	"math"
	"testing"

	"github.com/framefold/timeline-engine/internal/models"
)

func TestSplitBasic(t *testing.T) {
	seg := models.Segment{
		ID:                    "a",
		Type:                  models.SegmentTypeVideo,
		Layer:                 0,
		StartTime:             0,
		Duration:              10,
		StartTimeWithinSource: 0,
		EndTimeWithinSource:   10,
		Speed:                 1,
		PositionX:             30,
		Rotation:              15,
	}

	res, err := Split(seg, 4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	if res.First.ID != "a" {
		t.Errorf("first part id = %q, want original id", res.First.ID)
	}
	if res.First.StartTime != 0 || res.First.Duration != 4 {
		t.Errorf("first part = {%v, %v}, want {0, 4}", res.First.StartTime, res.First.Duration)
	}
	if res.Second.StartTime != 4 || res.Second.Duration != 6 {
		t.Errorf("second part = {%v, %v}, want {4, 6}", res.Second.StartTime, res.Second.Duration)
	}
	if !models.IsPendingID(res.Second.ID) || !res.Second.Pending {
		t.Errorf("second part should carry a pending id, got %q pending=%v", res.Second.ID, res.Second.Pending)
	}
	if res.First.EndTimeWithinSource != res.Second.StartTimeWithinSource {
		t.Errorf("source windows not contiguous: %v vs %v",
			res.First.EndTimeWithinSource, res.Second.StartTimeWithinSource)
	}
	if res.Second.EndTimeWithinSource != 10 {
		t.Errorf("second source end = %v, want 10", res.Second.EndTimeWithinSource)
	}
	// styles copied unchanged
	if res.Second.PositionX != 30 || res.Second.Rotation != 15 {
		t.Errorf("transform not copied: %+v", res.Second)
	}
	// derived fields in sync
	if res.First.TimelineEndTime != 4 || res.Second.TimelineStartTime != 4 {
		t.Errorf("derived fields stale: first end %v, second start %v",
			res.First.TimelineEndTime, res.Second.TimelineStartTime)
	}
}

func TestSplitHonorsSpeed(t *testing.T) {
	seg := models.Segment{
		ID:                    "a",
		Type:                  models.SegmentTypeVideo,
		StartTime:             0,
		Duration:              5,
		StartTimeWithinSource: 2,
		EndTimeWithinSource:   12,
		Speed:                 2,
	}

	res, err := Split(seg, 3)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	// 3 timeline seconds at 2x speed consume 6 source seconds
	if res.First.EndTimeWithinSource != 8 {
		t.Errorf("first source end = %v, want 8", res.First.EndTimeWithinSource)
	}
	if res.Second.StartTimeWithinSource != 8 || res.Second.EndTimeWithinSource != 12 {
		t.Errorf("second source window = [%v, %v], want [8, 12]",
			res.Second.StartTimeWithinSource, res.Second.EndTimeWithinSource)
	}
}

func TestSplitContiguityProperty(t *testing.T) {
	seg := models.Segment{
		ID:                    "a",
		Type:                  models.SegmentTypeVideo,
		StartTime:             1.5,
		Duration:              7.333,
		StartTimeWithinSource: 0.25,
		EndTimeWithinSource:   7.583,
		Speed:                 1,
	}

	for _, offset := range []float64{0.1, 0.5, 3.7, 7.2} {
		res, err := Split(seg, seg.StartTime+offset)
		if err != nil {
			t.Fatalf("Split at offset %v: %v", offset, err)
		}
		total := res.First.Duration + res.Second.Duration
		if models.Round3(total) != models.Round3(seg.Duration) {
			t.Errorf("offset %v: durations %v + %v != %v", offset, res.First.Duration, res.Second.Duration, seg.Duration)
		}
		if res.First.EndTimeWithinSource != res.Second.StartTimeWithinSource {
			t.Errorf("offset %v: source windows not adjacent", offset)
		}
	}
}

func TestSplitRejectionBoundary(t *testing.T) {
	seg := models.Segment{ID: "a", StartTime: 0, Duration: 10}

	tests := []struct {
		name      string
		clickTime float64
		wantErr   bool
	}{
		{"before start", -1, true},
		{"at start", 0, true},
		{"inside margin at start", 0.05, true},
		{"exactly at margin", 0.1, false},
		{"middle", 5, false},
		{"exactly at end margin", 9.9, false},
		{"inside margin at end", 9.95, true},
		{"at end", 10, true},
		{"past end", 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(seg, tt.clickTime)
			if tt.wantErr {
				if !errors.Is(err, ErrSplitMargin) {
					t.Errorf("err = %v, want ErrSplitMargin", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplitLeavesOriginalUntouched(t *testing.T) {
	seg := models.Segment{
		ID: "a", StartTime: 0, Duration: 10,
		EndTimeWithinSource: 10,
		Filters:             []models.Filter{{Name: "grayscale"}},
	}

	res, err := Split(seg, 5)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	res.First.Filters[0].Name = "sepia"

	if seg.Filters[0].Name != "grayscale" {
		t.Error("split parts share filter storage with the original")
	}
	if seg.Duration != 10 || seg.EndTimeWithinSource != 10 {
		t.Error("original segment mutated by Split")
	}
	if math.Abs(res.Second.Duration-5) > 1e-9 {
		t.Errorf("second duration = %v, want 5", res.Second.Duration)
	}
}
