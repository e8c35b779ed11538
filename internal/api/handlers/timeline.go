package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/config"
	"github.com/framefold/timeline-engine/internal/models"
	"github.com/framefold/timeline-engine/internal/remote"
	"github.com/framefold/timeline-engine/internal/session"
	"github.com/framefold/timeline-engine/internal/timeline"
)

type TimelineHandler struct {
	session *session.Session
	editor  config.EditorConfig
	logger  *zap.Logger
}

func NewTimelineHandler(sess *session.Session, editor config.EditorConfig, logger *zap.Logger) *TimelineHandler {
	return &TimelineHandler{
		session: sess,
		editor:  editor,
		logger:  logger,
	}
}

// PixelPosition carries drag-gesture coordinates; the handler converts them
// to timeline time and layer using the configured track geometry
type PixelPosition struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	GrabOffset float64 `json:"grabOffset"`
}

func (h *TimelineHandler) Get(c *gin.Context) {
	tl := h.session.Timeline()
	c.JSON(http.StatusOK, gin.H{
		"timeline":      tl,
		"totalDuration": tl.TotalDuration(),
		"blocked":       h.session.Blocked(),
	})
}

func (h *TimelineHandler) Drop(c *gin.Context) {
	var req struct {
		Type            string         `json:"type" binding:"required"`
		FilePath        string         `json:"filePath"`
		FileName        string         `json:"fileName"`
		Text            string         `json:"text"`
		Duration        float64        `json:"duration" binding:"required"`
		Start           float64        `json:"start"`
		Layer           int            `json:"layer"`
		Speed           float64        `json:"speed"`
		Volume          float64        `json:"volume"`
		FontFamily      string         `json:"fontFamily"`
		FontSize        float64        `json:"fontSize"`
		FontColor       string         `json:"fontColor"`
		BackgroundColor string         `json:"backgroundColor"`
		ExtractAudio    bool           `json:"extractAudio"`
		DisableSnap     bool           `json:"disableSnap"`
		Position        *PixelPosition `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, layer := req.Start, req.Layer
	if req.Position != nil {
		start, layer = h.resolvePixelPosition(*req.Position, models.SegmentType(req.Type))
	}

	var (
		seg models.Segment
		err error
	)
	switch models.SegmentType(req.Type) {
	case models.SegmentTypeVideo:
		seg, err = h.session.DropVideo(c.Request.Context(), session.DropVideoRequest{
			FilePath:           req.FilePath,
			Duration:           req.Duration,
			Speed:              req.Speed,
			PreferredStart:     start,
			Layer:              layer,
			CreateAudioSegment: req.ExtractAudio,
			DisableSnap:        req.DisableSnap,
		})
	case models.SegmentTypeAudio:
		seg, err = h.session.DropAudio(c.Request.Context(), session.DropAudioRequest{
			FileName:       req.FileName,
			Duration:       req.Duration,
			Volume:         req.Volume,
			PreferredStart: start,
			Layer:          layer,
			DisableSnap:    req.DisableSnap,
		})
	case models.SegmentTypeText:
		seg, err = h.session.DropText(c.Request.Context(), session.DropTextRequest{
			Text:            req.Text,
			Duration:        req.Duration,
			PreferredStart:  start,
			Layer:           layer,
			FontFamily:      req.FontFamily,
			FontSize:        req.FontSize,
			FontColor:       req.FontColor,
			BackgroundColor: req.BackgroundColor,
			DisableSnap:     req.DisableSnap,
		})
	case models.SegmentTypeImage:
		seg, err = h.session.DropImage(c.Request.Context(), req.FilePath, req.Duration, start, layer)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown segment type"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, seg)
}

func (h *TimelineHandler) Move(c *gin.Context) {
	id := c.Param("segmentId")

	var req struct {
		Start       float64        `json:"start"`
		Layer       int            `json:"layer"`
		DisableSnap bool           `json:"disableSnap"`
		Position    *PixelPosition `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, layer := req.Start, req.Layer
	if req.Position != nil {
		class := models.SegmentTypeVideo
		if seg, _, ok := h.session.Timeline().Find(id); ok {
			class = seg.Type
		}
		start, layer = h.resolvePixelPosition(*req.Position, class)
	}

	result, err := h.session.MoveSegment(c.Request.Context(), id, start, layer, req.DisableSnap)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *TimelineHandler) Split(c *gin.Context) {
	id := c.Param("segmentId")

	var req struct {
		Time float64 `json:"time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.session.SplitSegment(c.Request.Context(), id, req.Time)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"first":  result.First,
		"second": result.Second,
	})
}

func (h *TimelineHandler) Update(c *gin.Context) {
	id := c.Param("segmentId")

	var seg models.Segment
	if err := c.ShouldBindJSON(&seg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seg.ID = id
	updated, err := h.session.EditSegment(c.Request.Context(), seg)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *TimelineHandler) Delete(c *gin.Context) {
	id := c.Param("segmentId")

	if err := h.session.DeleteSegment(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *TimelineHandler) Undo(c *gin.Context) {
	applied := h.session.Undo()
	c.JSON(http.StatusOK, gin.H{
		"applied":  applied,
		"timeline": h.session.Timeline(),
	})
}

func (h *TimelineHandler) Redo(c *gin.Context) {
	applied := h.session.Redo()
	c.JSON(http.StatusOK, gin.H{
		"applied":  applied,
		"timeline": h.session.Timeline(),
	})
}

func (h *TimelineHandler) Reload(c *gin.Context) {
	if err := h.session.Reload(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": h.session.Timeline()})
}

// resolvePixelPosition maps drag coordinates to a timeline time and layer
// using the current track stack. Layer resolution stays within the segment
// type's class: audio below the video rows, everything else above.
func (h *TimelineHandler) resolvePixelPosition(pos PixelPosition, class models.SegmentType) (float64, int) {
	tl := h.session.Timeline()

	video := tl.VideoLayerIndices()
	// top row shows the highest layer
	for i, j := 0, len(video)-1; i < j; i, j = i+1, j-1 {
		video[i], video[j] = video[j], video[i]
	}

	vp := timeline.Viewport{
		PixelsPerSecond: h.editor.PixelsPerSecond,
		RowHeight:       h.editor.RowHeight,
		VideoLayers:     video,
		AudioLayers:     tl.AudioLayerIndices(),
	}
	return vp.TimeAt(pos.X, pos.GrabOffset), vp.LayerAt(pos.Y, class)
}

// fail maps engine and bridge errors to HTTP statuses
func (h *TimelineHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, timeline.ErrSegmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, timeline.ErrOverlap):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, timeline.ErrSplitMargin), errors.Is(err, timeline.ErrInvalidDuration):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, remote.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired, re-authenticate via /api/auth/token"})
	default:
		var se *remote.ServerError
		if errors.As(err, &se) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Timeline operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
