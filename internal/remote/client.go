// Package remote is the persistence bridge to the project store of record.
// The engine's in-memory timeline is a cache; this package pushes it out
// (debounced bulk saves plus per-segment CRUD) and pulls the authoritative
// copy back on demand or after a server-side failure.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/models"
)

// ErrSessionExpired signals a 401 (or an already-expired bearer token).
// Callers must surface it to the auth layer instead of retrying.
var ErrSessionExpired = errors.New("session expired")

// ServerError is a non-2xx response other than 401. Status codes >= 500 mean
// the authoritative copy may have diverged from local state; callers resolve
// that with a full reload.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// IsServerFault reports whether err is a 5xx ServerError
func IsServerFault(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode >= 500
}

// TokenProvider supplies the current bearer token. The auth layer owns
// token refresh; the bridge only reads.
type TokenProvider func() string

// Client talks to the project API
type Client struct {
	baseURL   string
	projectID string
	http      *http.Client
	token     TokenProvider
	logger    *zap.Logger
}

// NewClient creates a project API client for one project
func NewClient(baseURL, projectID string, token TokenProvider, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		projectID: projectID,
		http:      &http.Client{Timeout: timeout},
		token:     token,
		logger:    logger,
	}
}

// AddVideoRequest mirrors POST /projects/{id}/add-to-timeline
type AddVideoRequest struct {
	VideoPath          string  `json:"videoPath"`
	Layer              int     `json:"layer"`
	TimelineStartTime  float64 `json:"timelineStartTime"`
	TimelineEndTime    float64 `json:"timelineEndTime"`
	StartTime          float64 `json:"startTime"`
	EndTime            float64 `json:"endTime"`
	Speed              float64 `json:"speed"`
	CreateAudioSegment bool    `json:"createAudioSegment"`
}

// AddVideoResponse carries the server-assigned ids for reconciliation
type AddVideoResponse struct {
	VideoSegmentID   string `json:"videoSegmentId"`
	AudioSegmentID   string `json:"audioSegmentId,omitempty"`
	AudioPath        string `json:"audioPath,omitempty"`
	WaveformJSONPath string `json:"waveformJsonPath,omitempty"`
}

// UpdateSegmentRequest mirrors PUT /projects/{id}/update-segment
type UpdateSegmentRequest struct {
	SegmentID         string  `json:"segmentId"`
	TimelineStartTime float64 `json:"timelineStartTime"`
	TimelineEndTime   float64 `json:"timelineEndTime"`
	Layer             int     `json:"layer"`
	StartTime         float64 `json:"startTime"`
	EndTime           float64 `json:"endTime"`
	PositionX         float64 `json:"positionX"`
	PositionY         float64 `json:"positionY"`
	Scale             float64 `json:"scale"`
	Rotation          float64 `json:"rotation"`
	Speed             float64 `json:"speed"`
	DisplayName       string  `json:"displayName,omitempty"`
}

// AddAudioRequest mirrors POST /projects/{id}/add-project-audio-to-timeline
type AddAudioRequest struct {
	FileName          string  `json:"fileName"`
	Layer             int     `json:"layer"`
	TimelineStartTime float64 `json:"timelineStartTime"`
	TimelineEndTime   float64 `json:"timelineEndTime"`
	StartTime         float64 `json:"startTime"`
	EndTime           float64 `json:"endTime"`
	Volume            float64 `json:"volume"`
}

// AddAudioResponse carries the server-assigned audio segment id
type AddAudioResponse struct {
	AudioSegmentID   string `json:"audioSegmentId"`
	WaveformJSONPath string `json:"waveformJsonPath,omitempty"`
}

// UpdateAudioRequest mirrors PUT /projects/{id}/update-audio
type UpdateAudioRequest struct {
	SegmentID         string  `json:"segmentId"`
	TimelineStartTime float64 `json:"timelineStartTime"`
	TimelineEndTime   float64 `json:"timelineEndTime"`
	Layer             int     `json:"layer"`
	StartTime         float64 `json:"startTime"`
	EndTime           float64 `json:"endTime"`
	Volume            float64 `json:"volume"`
}

// AddTextRequest mirrors POST /projects/{id}/add-text
type AddTextRequest struct {
	Text              string  `json:"text"`
	Layer             int     `json:"layer"`
	TimelineStartTime float64 `json:"timelineStartTime"`
	TimelineEndTime   float64 `json:"timelineEndTime"`
	FontFamily        string  `json:"fontFamily"`
	FontSize          float64 `json:"fontSize"`
	FontColor         string  `json:"fontColor"`
	BackgroundColor   string  `json:"backgroundColor"`
	PositionX         float64 `json:"positionX"`
	PositionY         float64 `json:"positionY"`
}

// AddTextResponse carries the server-assigned text segment id
type AddTextResponse struct {
	TextSegmentID string `json:"textSegmentId"`
}

// UpdateTextRequest mirrors PUT /projects/{id}/update-text
type UpdateTextRequest struct {
	SegmentID         string  `json:"segmentId"`
	Text              string  `json:"text"`
	Layer             int     `json:"layer"`
	TimelineStartTime float64 `json:"timelineStartTime"`
	TimelineEndTime   float64 `json:"timelineEndTime"`
	FontFamily        string  `json:"fontFamily"`
	FontSize          float64 `json:"fontSize"`
	FontColor         string  `json:"fontColor"`
	BackgroundColor   string  `json:"backgroundColor"`
	PositionX         float64 `json:"positionX"`
	PositionY         float64 `json:"positionY"`
}

// Project is the authoritative project representation returned by the server.
// TimelineState arrives either JSON-encoded or double-encoded as a string;
// it is normalized immediately on receipt, never passed on ambiguous.
type Project struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TimelineState json.RawMessage `json:"timelineState"`
}

// AddVideoToTimeline creates a video segment (optionally with a linked audio
// segment extracted server-side) and returns the assigned ids
func (c *Client) AddVideoToTimeline(ctx context.Context, req AddVideoRequest) (*AddVideoResponse, error) {
	req.TimelineStartTime = models.Round3(req.TimelineStartTime)
	req.TimelineEndTime = models.Round3(req.TimelineEndTime)
	req.StartTime = models.Round3(req.StartTime)
	req.EndTime = models.Round3(req.EndTime)

	var resp AddVideoResponse
	if err := c.do(ctx, http.MethodPost, "add-to-timeline", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSegment pushes new timing/transform values for one video or image segment
func (c *Client) UpdateSegment(ctx context.Context, req UpdateSegmentRequest) error {
	req.TimelineStartTime = models.Round3(req.TimelineStartTime)
	req.TimelineEndTime = models.Round3(req.TimelineEndTime)
	req.StartTime = models.Round3(req.StartTime)
	req.EndTime = models.Round3(req.EndTime)
	return c.do(ctx, http.MethodPut, "update-segment", req, nil)
}

// AddAudioToTimeline creates an audio segment from a project media file
func (c *Client) AddAudioToTimeline(ctx context.Context, req AddAudioRequest) (*AddAudioResponse, error) {
	req.TimelineStartTime = models.Round3(req.TimelineStartTime)
	req.TimelineEndTime = models.Round3(req.TimelineEndTime)
	req.StartTime = models.Round3(req.StartTime)
	req.EndTime = models.Round3(req.EndTime)

	var resp AddAudioResponse
	if err := c.do(ctx, http.MethodPost, "add-project-audio-to-timeline", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateAudio pushes new timing/volume values for one audio segment
func (c *Client) UpdateAudio(ctx context.Context, req UpdateAudioRequest) error {
	req.TimelineStartTime = models.Round3(req.TimelineStartTime)
	req.TimelineEndTime = models.Round3(req.TimelineEndTime)
	req.StartTime = models.Round3(req.StartTime)
	req.EndTime = models.Round3(req.EndTime)
	return c.do(ctx, http.MethodPut, "update-audio", req, nil)
}

// AddText creates a text segment
func (c *Client) AddText(ctx context.Context, req AddTextRequest) (*AddTextResponse, error) {
	req.TimelineStartTime = models.Round3(req.TimelineStartTime)
	req.TimelineEndTime = models.Round3(req.TimelineEndTime)

	var resp AddTextResponse
	if err := c.do(ctx, http.MethodPost, "add-text", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateText pushes new content/timing/style values for one text segment
func (c *Client) UpdateText(ctx context.Context, req UpdateTextRequest) error {
	req.TimelineStartTime = models.Round3(req.TimelineStartTime)
	req.TimelineEndTime = models.Round3(req.TimelineEndTime)
	return c.do(ctx, http.MethodPut, "update-text", req, nil)
}

// DeleteSegment removes a segment from the server-side timeline
func (c *Client) DeleteSegment(ctx context.Context, segmentID string, segmentType models.SegmentType) error {
	path := fmt.Sprintf("remove-segment?segmentId=%s&segmentType=%s", segmentID, segmentType)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetProject fetches the authoritative project including its timeline state
func (c *Client) GetProject(ctx context.Context) (*Project, error) {
	url := fmt.Sprintf("%s/projects/%s", c.baseURL, c.projectID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var project Project
	if err := c.send(httpReq, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// SaveTimeline is the debounced bulk push of the full timeline state
func (c *Client) SaveTimeline(ctx context.Context, state TimelineState) error {
	body := struct {
		TimelineState TimelineState `json:"timelineState"`
	}{TimelineState: roundState(state)}
	return c.do(ctx, http.MethodPost, "save", body, nil)
}

func (c *Client) do(ctx context.Context, method, action string, body, out any) error {
	url := fmt.Sprintf("%s/projects/%s/%s", c.baseURL, c.projectID, action)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	token := c.token()
	if token != "" {
		if expired, err := tokenExpired(token); err == nil && expired {
			// No point hitting the network with a stale token
			return ErrSessionExpired
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Project API request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return &ServerError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// tokenExpired decodes the JWT expiry claim without verifying the signature;
// verification is the server's job, the bridge only wants an early exit
func tokenExpired(token string) (bool, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, err
	}
	return exp.Before(time.Now()), nil
}
