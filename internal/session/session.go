// Package session orchestrates one editing session: it owns the in-memory
// timeline, routes gestures through the placement and split engines, keeps
// undo/redo history, and drives the persistence bridge. Mutations apply
// optimistically with pending ids, reconciled once the store of record
// responds.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/draft"
	"github.com/framefold/timeline-engine/internal/models"
	"github.com/framefold/timeline-engine/internal/remote"
	"github.com/framefold/timeline-engine/internal/timeline"
)

// Publisher receives read-only state notifications for the rendering
// adapter. Implementations must not block.
type Publisher interface {
	PublishTimeline(tl models.Timeline)
	PublishSnap(ind *models.SnapIndicator)
	PublishSessionExpired()
}

// NopPublisher discards all notifications
type NopPublisher struct{}

func (NopPublisher) PublishTimeline(models.Timeline)   {}
func (NopPublisher) PublishSnap(*models.SnapIndicator) {}
func (NopPublisher) PublishSessionExpired()            {}

// Config wires a session's collaborators
type Config struct {
	ProjectID     string
	Client        *remote.Client
	Publisher     Publisher
	Drafts        *draft.Store // optional local fallback
	Logger        *zap.Logger
	SnapThreshold float64
	AutosaveDelay time.Duration
}

// Session is the exclusive owner of one project's editing state. All
// operations are serialized through its mutex; network calls run outside it.
type Session struct {
	mu      sync.Mutex
	current models.Timeline
	history *timeline.History
	blocked bool // persistence blocked until re-authentication

	projectID     string
	client        *remote.Client
	saver         *remote.Autosaver
	updates       *remote.Dispatcher
	registry      *RenderRegistry
	pub           Publisher
	drafts        *draft.Store
	logger        *zap.Logger
	snapThreshold float64
}

// New creates a session starting from an empty timeline. Call Reload to pull
// the authoritative state.
func New(cfg Config) *Session {
	if cfg.Publisher == nil {
		cfg.Publisher = NopPublisher{}
	}

	s := &Session{
		current:       models.NewTimeline(),
		projectID:     cfg.ProjectID,
		client:        cfg.Client,
		registry:      NewRenderRegistry(),
		pub:           cfg.Publisher,
		drafts:        cfg.Drafts,
		logger:        cfg.Logger,
		snapThreshold: cfg.SnapThreshold,
	}
	s.history = timeline.NewHistory(s.current)
	s.saver = remote.NewAutosaver(cfg.AutosaveDelay, cfg.Client.SaveTimeline, s.handleRemoteError, cfg.Logger)
	s.updates = remote.NewDispatcher(s.pushSegmentUpdate, func(segmentID string, err error) {
		s.handleRemoteError(err)
	}, cfg.Logger)
	return s
}

// Registry exposes the render-instance registry to the adapter layer
func (s *Session) Registry() *RenderRegistry { return s.registry }

// Timeline returns a snapshot of the current timeline
func (s *Session) Timeline() models.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// TotalDuration returns the current timeline length in seconds
func (s *Session) TotalDuration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.TotalDuration()
}

// DropVideoRequest places a clip from the media library onto the timeline
type DropVideoRequest struct {
	FilePath           string
	Duration           float64
	Speed              float64
	PreferredStart     float64
	Layer              int
	CreateAudioSegment bool
	DisableSnap        bool
}

// DropVideo optimistically inserts a video segment and awaits the create
// call to reconcile its id. Overlapping drops are pushed past their
// neighbors rather than rejected.
func (s *Session) DropVideo(ctx context.Context, req DropVideoRequest) (models.Segment, error) {
	speed := req.Speed
	if speed <= 0 {
		speed = models.DefaultSpeed
	}

	s.mu.Lock()
	placement, err := timeline.PlaceDrop(s.current, timeline.Candidate{
		Type:           models.SegmentTypeVideo,
		Duration:       req.Duration,
		PreferredStart: req.PreferredStart,
		PreferredLayer: timeline.NormalizeLayer(models.SegmentTypeVideo, req.Layer),
	}, s.placementOptions(req.DisableSnap))
	if err != nil {
		s.mu.Unlock()
		return models.Segment{}, err
	}

	seg := models.Segment{
		ID:                  models.NewPendingID(),
		Type:                models.SegmentTypeVideo,
		Layer:               placement.Layer,
		Pending:             true,
		StartTime:           placement.StartTime,
		Duration:            req.Duration,
		EndTimeWithinSource: req.Duration * speed,
		FilePath:            req.FilePath,
		Speed:               speed,
	}
	seg.ApplyDefaults()
	seg, err = s.insertUniqueLocked(seg)
	if err != nil {
		s.mu.Unlock()
		return models.Segment{}, err
	}
	s.commitLocked()
	s.mu.Unlock()

	resp, err := s.client.AddVideoToTimeline(ctx, remote.AddVideoRequest{
		VideoPath:          req.FilePath,
		Layer:              seg.Layer,
		TimelineStartTime:  seg.StartTime,
		TimelineEndTime:    seg.EndTime(),
		StartTime:          seg.StartTimeWithinSource,
		EndTime:            seg.EndTimeWithinSource,
		Speed:              speed,
		CreateAudioSegment: req.CreateAudioSegment,
	})
	if err != nil {
		return seg, s.failCreate(seg.ID, err)
	}

	s.mu.Lock()
	confirmed := s.reconcileLocked(seg.ID, resp.VideoSegmentID, func(c *models.Segment) {
		c.WaveformPath = resp.WaveformJSONPath
	})
	if resp.AudioSegmentID != "" {
		s.insertLinkedAudioLocked(confirmed, resp)
	}
	s.scheduleSaveLocked()
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.pub.PublishTimeline(snapshot)
	s.enqueueIfChanged(seg, confirmed)
	return confirmed, nil
}

// DropAudioRequest places a project audio file onto a (negative) audio layer
type DropAudioRequest struct {
	FileName       string
	Duration       float64
	Volume         float64
	PreferredStart float64
	Layer          int
	DisableSnap    bool
}

// DropAudio optimistically inserts an audio segment and reconciles its id
func (s *Session) DropAudio(ctx context.Context, req DropAudioRequest) (models.Segment, error) {
	layer := timeline.NormalizeLayer(models.SegmentTypeAudio, req.Layer)

	s.mu.Lock()
	placement, err := timeline.PlaceDrop(s.current, timeline.Candidate{
		Type:           models.SegmentTypeAudio,
		Duration:       req.Duration,
		PreferredStart: req.PreferredStart,
		PreferredLayer: layer,
	}, s.placementOptions(req.DisableSnap))
	if err != nil {
		s.mu.Unlock()
		return models.Segment{}, err
	}

	seg := models.Segment{
		ID:                  models.NewPendingID(),
		Type:                models.SegmentTypeAudio,
		Layer:               placement.Layer,
		Pending:             true,
		StartTime:           placement.StartTime,
		Duration:            req.Duration,
		EndTimeWithinSource: req.Duration,
		FileName:            req.FileName,
		Volume:              req.Volume,
	}
	seg.ApplyDefaults()
	seg, err = s.insertUniqueLocked(seg)
	if err != nil {
		s.mu.Unlock()
		return models.Segment{}, err
	}
	s.commitLocked()
	s.mu.Unlock()

	resp, err := s.client.AddAudioToTimeline(ctx, remote.AddAudioRequest{
		FileName:          req.FileName,
		Layer:             seg.Layer,
		TimelineStartTime: seg.StartTime,
		TimelineEndTime:   seg.EndTime(),
		StartTime:         seg.StartTimeWithinSource,
		EndTime:           seg.EndTimeWithinSource,
		Volume:            seg.Volume,
	})
	if err != nil {
		return seg, s.failCreate(seg.ID, err)
	}

	s.mu.Lock()
	confirmed := s.reconcileLocked(seg.ID, resp.AudioSegmentID, func(c *models.Segment) {
		c.WaveformPath = resp.WaveformJSONPath
	})
	s.scheduleSaveLocked()
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.pub.PublishTimeline(snapshot)
	s.enqueueIfChanged(seg, confirmed)
	return confirmed, nil
}

// DropTextRequest places a text overlay segment
type DropTextRequest struct {
	Text            string
	Duration        float64
	PreferredStart  float64
	Layer           int
	FontFamily      string
	FontSize        float64
	FontColor       string
	BackgroundColor string
	DisableSnap     bool
}

// DropText optimistically inserts a text segment and reconciles its id
func (s *Session) DropText(ctx context.Context, req DropTextRequest) (models.Segment, error) {
	s.mu.Lock()
	placement, err := timeline.PlaceDrop(s.current, timeline.Candidate{
		Type:           models.SegmentTypeText,
		Duration:       req.Duration,
		PreferredStart: req.PreferredStart,
		PreferredLayer: timeline.NormalizeLayer(models.SegmentTypeText, req.Layer),
	}, s.placementOptions(req.DisableSnap))
	if err != nil {
		s.mu.Unlock()
		return models.Segment{}, err
	}

	seg := models.Segment{
		ID:                  models.NewPendingID(),
		Type:                models.SegmentTypeText,
		Layer:               placement.Layer,
		Pending:             true,
		StartTime:           placement.StartTime,
		Duration:            req.Duration,
		EndTimeWithinSource: req.Duration,
		Text:                req.Text,
		FontFamily:          req.FontFamily,
		FontSize:            req.FontSize,
		FontColor:           req.FontColor,
		BackgroundColor:     req.BackgroundColor,
	}
	seg.ApplyDefaults()
	seg, err = s.insertUniqueLocked(seg)
	if err != nil {
		s.mu.Unlock()
		return models.Segment{}, err
	}
	s.commitLocked()
	s.mu.Unlock()

	resp, err := s.client.AddText(ctx, remote.AddTextRequest{
		Text:              req.Text,
		Layer:             seg.Layer,
		TimelineStartTime: seg.StartTime,
		TimelineEndTime:   seg.EndTime(),
		FontFamily:        seg.FontFamily,
		FontSize:          seg.FontSize,
		FontColor:         seg.FontColor,
		BackgroundColor:   seg.BackgroundColor,
		PositionX:         seg.PositionX,
		PositionY:         seg.PositionY,
	})
	if err != nil {
		return seg, s.failCreate(seg.ID, err)
	}

	s.mu.Lock()
	confirmed := s.reconcileLocked(seg.ID, resp.TextSegmentID, nil)
	s.scheduleSaveLocked()
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.pub.PublishTimeline(snapshot)
	s.enqueueIfChanged(seg, confirmed)
	return confirmed, nil
}

// DropImage inserts an image segment. Images have no dedicated create
// endpoint; they reach the store of record through the bulk save, so the
// client-generated id is final.
func (s *Session) DropImage(ctx context.Context, filePath string, duration, preferredStart float64, layer int) (models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	placement, err := timeline.PlaceDrop(s.current, timeline.Candidate{
		Type:           models.SegmentTypeImage,
		Duration:       duration,
		PreferredStart: preferredStart,
		PreferredLayer: timeline.NormalizeLayer(models.SegmentTypeImage, layer),
	}, s.placementOptions(false))
	if err != nil {
		return models.Segment{}, err
	}

	seg := models.Segment{
		ID:                  uuid.New().String(),
		Type:                models.SegmentTypeImage,
		Layer:               placement.Layer,
		StartTime:           placement.StartTime,
		Duration:            duration,
		EndTimeWithinSource: duration,
		FilePath:            filePath,
	}
	seg.ApplyDefaults()
	seg, err = s.insertUniqueLocked(seg)
	if err != nil {
		return models.Segment{}, err
	}
	s.commitLocked()
	return seg, nil
}

// MoveResult reports where a gesture landed and any snap that influenced it
type MoveResult struct {
	Segment models.Segment        `json:"segment"`
	Snap    *models.SnapIndicator `json:"snap,omitempty"`
}

// MoveSegment relocates a segment. An irreconcilable overlap declines the
// move and leaves the timeline unchanged.
func (s *Session) MoveSegment(ctx context.Context, id string, preferredStart float64, layer int, disableSnap bool) (MoveResult, error) {
	s.mu.Lock()
	seg, _, ok := s.current.Find(id)
	if !ok {
		s.mu.Unlock()
		return MoveResult{}, fmt.Errorf("move %s: %w", id, timeline.ErrSegmentNotFound)
	}

	placement, err := timeline.ComputePlacement(s.current, timeline.Candidate{
		Type:           seg.Type,
		Duration:       seg.Duration,
		PreferredStart: preferredStart,
		PreferredLayer: timeline.NormalizeLayer(seg.Type, layer),
		ExcludeID:      id,
	}, s.placementOptions(disableSnap))
	if err != nil {
		s.mu.Unlock()
		return MoveResult{}, err
	}

	moved, err := timeline.Move(s.current, id, placement.StartTime, placement.Layer)
	if err != nil {
		s.mu.Unlock()
		return MoveResult{}, err
	}
	s.current = moved
	s.commitLocked()
	result, _, _ := s.current.Find(id)
	pending := result.Pending
	s.mu.Unlock()

	s.pub.PublishSnap(placement.Snap)
	if !pending {
		s.updates.Enqueue(result)
	}
	return MoveResult{Segment: result, Snap: placement.Snap}, nil
}

// EditSegment applies property changes (transform, volume, text styling,
// trim) to an existing segment. Identity and pending state are preserved;
// timing changes are validated against layer occupancy.
func (s *Session) EditSegment(ctx context.Context, updated models.Segment) (models.Segment, error) {
	s.mu.Lock()
	existing, _, ok := s.current.Find(updated.ID)
	if !ok {
		s.mu.Unlock()
		return models.Segment{}, fmt.Errorf("edit %s: %w", updated.ID, timeline.ErrSegmentNotFound)
	}

	updated.Type = existing.Type
	updated.Pending = existing.Pending
	updated.Layer = timeline.NormalizeLayer(existing.Type, updated.Layer)
	if updated.Duration <= 0 {
		s.mu.Unlock()
		return models.Segment{}, timeline.ErrInvalidDuration
	}
	if timeline.HasOverlap(s.current, updated.Layer, updated.StartTime, updated.Duration, updated.ID) {
		s.mu.Unlock()
		return models.Segment{}, timeline.ErrOverlap
	}

	next, err := timeline.Update(s.current, updated)
	if err != nil {
		s.mu.Unlock()
		return models.Segment{}, err
	}
	s.current = next
	s.commitLocked()
	result, _, _ := s.current.Find(updated.ID)
	s.mu.Unlock()

	if !result.Pending {
		s.updates.Enqueue(result)
	}
	return result, nil
}

// SplitSegment divides a segment at an absolute timeline time. The first
// part keeps its identity; the second is created optimistically and
// reconciled with the server-assigned id.
func (s *Session) SplitSegment(ctx context.Context, id string, clickTime float64) (timeline.SplitResult, error) {
	s.mu.Lock()
	seg, _, ok := s.current.Find(id)
	if !ok {
		s.mu.Unlock()
		return timeline.SplitResult{}, fmt.Errorf("split %s: %w", id, timeline.ErrSegmentNotFound)
	}

	res, err := timeline.Split(seg, clickTime)
	if err != nil {
		s.mu.Unlock()
		return timeline.SplitResult{}, err
	}

	next, err := timeline.Update(s.current, res.First)
	if err != nil {
		s.mu.Unlock()
		return timeline.SplitResult{}, err
	}
	s.current = next
	res.Second, err = s.insertUniqueLocked(res.Second)
	if err != nil {
		s.mu.Unlock()
		return timeline.SplitResult{}, err
	}
	s.commitLocked()
	firstPending := res.First.Pending
	s.mu.Unlock()

	if !firstPending {
		s.updates.Enqueue(res.First)
	}

	tentative := res.Second
	serverID, waveform, err := s.createSplitPart(ctx, res.Second)
	if err != nil {
		return res, s.failCreate(res.Second.ID, err)
	}

	s.mu.Lock()
	res.Second = s.reconcileLocked(res.Second.ID, serverID, func(c *models.Segment) {
		if waveform != "" {
			c.WaveformPath = waveform
		}
	})
	s.scheduleSaveLocked()
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.pub.PublishTimeline(snapshot)
	s.enqueueIfChanged(tentative, res.Second)
	return res, nil
}

// DeleteSegment removes a segment locally and at the store of record
func (s *Session) DeleteSegment(ctx context.Context, id string) error {
	s.mu.Lock()
	seg, _, ok := s.current.Find(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, timeline.ErrSegmentNotFound)
	}

	next, _ := timeline.Remove(s.current, id)
	s.current = next
	s.registry.Release(id)
	s.commitLocked()
	s.mu.Unlock()

	if seg.Pending {
		// never committed server-side, nothing to delete remotely
		return nil
	}
	if err := s.client.DeleteSegment(ctx, id, seg.Type); err != nil {
		s.handleRemoteError(err)
		return err
	}
	return nil
}

// Undo steps back one snapshot. The restored state is persisted like any
// other mutation; undo is not a local-only view change.
func (s *Session) Undo() bool {
	s.mu.Lock()
	tl, ok := s.history.Undo()
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.current = tl
	s.scheduleSaveLocked()
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.pub.PublishTimeline(snapshot)
	return true
}

// Redo steps forward one snapshot, persisting the restored state
func (s *Session) Redo() bool {
	s.mu.Lock()
	tl, ok := s.history.Redo()
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.current = tl
	s.scheduleSaveLocked()
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.pub.PublishTimeline(snapshot)
	return true
}

// Reload pulls the authoritative timeline and replaces local state wholesale.
// History is reset, not merged; editing history does not survive a resync.
func (s *Session) Reload(ctx context.Context) error {
	project, err := s.client.GetProject(ctx)
	if err != nil {
		if errors.Is(err, remote.ErrSessionExpired) {
			s.blockPersistence()
		}
		return fmt.Errorf("reload project %s: %w", s.projectID, err)
	}

	state, err := remote.NormalizeTimelineState(project.TimelineState)
	if err != nil {
		return fmt.Errorf("reload project %s: %w", s.projectID, err)
	}

	s.mu.Lock()
	s.current = state.ToTimeline()
	s.history.Reset(s.current)
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.logger.Info("Reloaded timeline from server",
		zap.String("projectId", s.projectID),
		zap.Float64("totalDuration", snapshot.TotalDuration()))
	s.pub.PublishTimeline(snapshot)
	return nil
}

// Unblock re-enables persistence after re-authentication and pushes the
// state that accumulated while blocked
func (s *Session) Unblock() {
	s.mu.Lock()
	wasBlocked := s.blocked
	s.blocked = false
	if wasBlocked {
		s.saver.Schedule(remote.StateFromTimeline(s.current))
	}
	s.mu.Unlock()

	if wasBlocked && s.drafts != nil {
		if err := s.drafts.Discard(s.projectID); err != nil {
			s.logger.Warn("Failed to discard local draft", zap.Error(err))
		}
	}
}

// Blocked reports whether persistence is currently suspended pending
// re-authentication
func (s *Session) Blocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked
}

// Close flushes pending saves and waits for in-flight segment updates
func (s *Session) Close(ctx context.Context) error {
	if err := s.saver.Close(ctx); err != nil {
		return err
	}
	select {
	case <-s.updates.Idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commitLocked records the current state in history, schedules a debounced
// save, and publishes to render subscribers. Caller holds the mutex.
func (s *Session) commitLocked() {
	s.history.Record(s.current)
	s.scheduleSaveLocked()
	s.pub.PublishTimeline(s.current.Clone())
}

func (s *Session) scheduleSaveLocked() {
	if s.blocked {
		if s.drafts != nil {
			state := remote.StateFromTimeline(s.current)
			projectID := s.projectID
			go func() {
				if err := s.drafts.Save(projectID, state); err != nil {
					s.logger.Warn("Failed to save local draft", zap.Error(err))
				}
			}()
		}
		return
	}
	s.saver.Schedule(remote.StateFromTimeline(s.current))
}

func (s *Session) placementOptions(disableSnap bool) timeline.Options {
	return timeline.Options{SnapThreshold: s.snapThreshold, DisableSnap: disableSnap}
}

// insertUniqueLocked inserts a segment, substituting a fresh id on
// collision. An id is never silently reused for two segments.
func (s *Session) insertUniqueLocked(seg models.Segment) (models.Segment, error) {
	if _, _, exists := s.current.Find(seg.ID); exists {
		fresh := models.NewPendingID()
		if !seg.Pending {
			fresh = uuid.New().String()
		}
		s.logger.Warn("Segment id collision, substituting fresh id",
			zap.String("collidingId", seg.ID),
			zap.String("freshId", fresh))
		seg.ID = fresh
	}

	next, err := timeline.Insert(s.current, seg)
	if err != nil {
		return models.Segment{}, err
	}
	s.current = next
	return seg, nil
}

// reconcileLocked swaps a pending id for the server-assigned one, rebinding
// render instances. The swap amends the current history entry instead of
// becoming its own undo step.
func (s *Session) reconcileLocked(pendingID, serverID string, enrich func(*models.Segment)) models.Segment {
	if serverID == "" || serverID == pendingID {
		serverID = pendingID
	} else if _, _, exists := s.current.Find(serverID); exists {
		fresh := uuid.New().String()
		s.logger.Warn("Server-assigned id already present, substituting fresh id",
			zap.String("serverId", serverID),
			zap.String("freshId", fresh))
		serverID = fresh
	}

	next, err := timeline.ReplaceID(s.current, pendingID, serverID)
	if err != nil {
		// the segment vanished while the create call was in flight
		// (deleted or superseded by a reload)
		s.logger.Warn("Pending segment gone before reconciliation",
			zap.String("pendingId", pendingID))
		seg, _, _ := s.current.Find(serverID)
		return seg
	}
	s.current = next

	seg, _, _ := s.current.Find(serverID)
	if enrich != nil {
		enrich(&seg)
		if updated, err := timeline.Update(s.current, seg); err == nil {
			s.current = updated
		}
	}
	s.registry.Rebind(pendingID, serverID)
	s.history.Amend(s.current)
	return seg
}

// enqueueIfChanged pushes a per-segment update when the segment was moved or
// edited between the create call and its reconciliation. The create carried
// the pre-flight values; without the follow-up only the debounced bulk save
// would correct the server.
func (s *Session) enqueueIfChanged(before, after models.Segment) {
	if after.ID == "" || after.Pending {
		return
	}
	if before.StartTime != after.StartTime || before.Duration != after.Duration || before.Layer != after.Layer {
		s.updates.Enqueue(after)
	}
}

// insertLinkedAudioLocked places the server-extracted audio track that
// accompanies a video segment on the first free audio layer
func (s *Session) insertLinkedAudioLocked(video models.Segment, resp *remote.AddVideoResponse) {
	layer := -1
	for timeline.HasOverlap(s.current, layer, video.StartTime, video.Duration, "") {
		layer--
	}

	audio := models.Segment{
		ID:                  resp.AudioSegmentID,
		Type:                models.SegmentTypeAudio,
		Layer:               layer,
		StartTime:           video.StartTime,
		Duration:            video.Duration,
		EndTimeWithinSource: video.Duration,
		FileName:            resp.AudioPath,
		WaveformPath:        resp.WaveformJSONPath,
	}
	audio.ApplyDefaults()
	if _, err := s.insertUniqueLocked(audio); err == nil {
		s.history.Amend(s.current)
	}
}

func (s *Session) createSplitPart(ctx context.Context, seg models.Segment) (serverID, waveform string, err error) {
	switch seg.Type {
	case models.SegmentTypeAudio:
		resp, err := s.client.AddAudioToTimeline(ctx, remote.AddAudioRequest{
			FileName:          seg.FileName,
			Layer:             seg.Layer,
			TimelineStartTime: seg.StartTime,
			TimelineEndTime:   seg.EndTime(),
			StartTime:         seg.StartTimeWithinSource,
			EndTime:           seg.EndTimeWithinSource,
			Volume:            seg.Volume,
		})
		if err != nil {
			return "", "", err
		}
		return resp.AudioSegmentID, resp.WaveformJSONPath, nil
	case models.SegmentTypeText:
		resp, err := s.client.AddText(ctx, remote.AddTextRequest{
			Text:              seg.Text,
			Layer:             seg.Layer,
			TimelineStartTime: seg.StartTime,
			TimelineEndTime:   seg.EndTime(),
			FontFamily:        seg.FontFamily,
			FontSize:          seg.FontSize,
			FontColor:         seg.FontColor,
			BackgroundColor:   seg.BackgroundColor,
			PositionX:         seg.PositionX,
			PositionY:         seg.PositionY,
		})
		if err != nil {
			return "", "", err
		}
		return resp.TextSegmentID, "", nil
	default:
		resp, err := s.client.AddVideoToTimeline(ctx, remote.AddVideoRequest{
			VideoPath:         seg.FilePath,
			Layer:             seg.Layer,
			TimelineStartTime: seg.StartTime,
			TimelineEndTime:   seg.EndTime(),
			StartTime:         seg.StartTimeWithinSource,
			EndTime:           seg.EndTimeWithinSource,
			Speed:             seg.EffectiveSpeed(),
		})
		if err != nil {
			return "", "", err
		}
		return resp.VideoSegmentID, resp.WaveformJSONPath, nil
	}
}

// pushSegmentUpdate routes one segment's values to its type-specific
// update endpoint
func (s *Session) pushSegmentUpdate(ctx context.Context, seg models.Segment) error {
	switch seg.Type {
	case models.SegmentTypeAudio:
		return s.client.UpdateAudio(ctx, remote.UpdateAudioRequest{
			SegmentID:         seg.ID,
			TimelineStartTime: seg.StartTime,
			TimelineEndTime:   seg.EndTime(),
			Layer:             seg.Layer,
			StartTime:         seg.StartTimeWithinSource,
			EndTime:           seg.EndTimeWithinSource,
			Volume:            seg.Volume,
		})
	case models.SegmentTypeText:
		return s.client.UpdateText(ctx, remote.UpdateTextRequest{
			SegmentID:         seg.ID,
			Text:              seg.Text,
			Layer:             seg.Layer,
			TimelineStartTime: seg.StartTime,
			TimelineEndTime:   seg.EndTime(),
			FontFamily:        seg.FontFamily,
			FontSize:          seg.FontSize,
			FontColor:         seg.FontColor,
			BackgroundColor:   seg.BackgroundColor,
			PositionX:         seg.PositionX,
			PositionY:         seg.PositionY,
		})
	default:
		return s.client.UpdateSegment(ctx, remote.UpdateSegmentRequest{
			SegmentID:         seg.ID,
			TimelineStartTime: seg.StartTime,
			TimelineEndTime:   seg.EndTime(),
			Layer:             seg.Layer,
			StartTime:         seg.StartTimeWithinSource,
			EndTime:           seg.EndTimeWithinSource,
			PositionX:         seg.PositionX,
			PositionY:         seg.PositionY,
			Scale:             seg.Scale,
			Rotation:          seg.Rotation,
			Speed:             seg.EffectiveSpeed(),
			DisplayName:       seg.DisplayName,
		})
	}
}

// failCreate handles a failed optimistic create: session expiry keeps the
// local edit and blocks persistence, a server fault triggers a resync, any
// other failure rolls the tentative segment back
func (s *Session) failCreate(pendingID string, err error) error {
	switch {
	case errors.Is(err, remote.ErrSessionExpired):
		s.blockPersistence()
	case remote.IsServerFault(err):
		s.logger.Error("Create failed with server fault, resyncing", zap.Error(err))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if rerr := s.Reload(ctx); rerr != nil {
				s.logger.Error("Resync after server fault failed", zap.Error(rerr))
			}
		}()
	default:
		s.logger.Warn("Create failed, rolling back tentative segment",
			zap.String("segmentId", pendingID),
			zap.Error(err))
		s.mu.Lock()
		next, removed := timeline.Remove(s.current, pendingID)
		if removed {
			s.current = next
			s.history.Amend(s.current)
			s.registry.Release(pendingID)
		}
		snapshot := s.current.Clone()
		s.mu.Unlock()
		s.pub.PublishTimeline(snapshot)
	}
	return err
}

// handleRemoteError applies the shared error policy for background
// persistence calls (autosave, segment updates, deletes)
func (s *Session) handleRemoteError(err error) {
	switch {
	case errors.Is(err, remote.ErrSessionExpired):
		s.blockPersistence()
	case remote.IsServerFault(err):
		s.logger.Error("Persistence failed with server fault, resyncing", zap.Error(err))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if rerr := s.Reload(ctx); rerr != nil {
				s.logger.Error("Resync after server fault failed", zap.Error(rerr))
			}
		}()
	default:
		// transient; already logged by the caller, optimistic state stands
	}
}

func (s *Session) blockPersistence() {
	s.mu.Lock()
	already := s.blocked
	s.blocked = true
	state := remote.StateFromTimeline(s.current)
	s.mu.Unlock()

	if already {
		return
	}
	s.logger.Warn("Session expired, persistence blocked until re-authentication",
		zap.String("projectId", s.projectID))
	if s.drafts != nil {
		if err := s.drafts.Save(s.projectID, state); err != nil {
			s.logger.Warn("Failed to save local draft", zap.Error(err))
		}
	}
	s.pub.PublishSessionExpired()
}
