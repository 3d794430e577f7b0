package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/opstate/module/core/domain"
	"github.com/nandanugg/opstate/module/core/service"
)

type sessionService interface {
	ClassifySession(ctx context.Context, sessionID string) (*domain.ClassificationResult, error)
	ClassifyPending(ctx context.Context) (*domain.BatchReport, error)
	ListSegments(ctx context.Context, sessionID string) ([]domain.StateSegment, error)
}

type segmentResponse struct {
	ID              string              `json:"id"`
	StateKind       int                 `json:"state_kind"`
	State           string              `json:"state"`
	StartTime       int64               `json:"start_time"`
	EndTime         int64               `json:"end_time"`
	DurationSeconds float64             `json:"duration_seconds"`
	StartLatitude   float64             `json:"start_latitude"`
	StartLongitude  float64             `json:"start_longitude"`
	EndLatitude     float64             `json:"end_latitude"`
	EndLongitude    float64             `json:"end_longitude"`
	BeaconState     *bool               `json:"beacon_state,omitempty"`
	Geofence        *domain.GeofenceRef `json:"geofence,omitempty"`
	Transition      string              `json:"transition"`
}

type diagnosticResponse struct {
	OldState   int    `json:"old_state"`
	NewState   int    `json:"new_state"`
	Transition string `json:"transition"`
	Timestamp  int64  `json:"timestamp"`
}

type classifyResponse struct {
	SessionID          string               `json:"session_id"`
	Segments           []segmentResponse    `json:"segments"`
	InvalidTransitions []diagnosticResponse `json:"invalid_transitions"`
}

type SessionHandler struct {
	sessionSvc sessionService
}

func NewSessionHandler(sessionSvc sessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

func (h *SessionHandler) Register(r *gin.RouterGroup) {
	r.POST("/sessions/classify-pending", h.ClassifyPending)
	r.POST("/sessions/:session_id/classify", h.ClassifySession)
	r.GET("/sessions/:session_id/segments", h.GetSegments)
}

func (h *SessionHandler) ClassifySession(c *gin.Context) {
	sessionID := c.Param("session_id")

	// The run outlives a client disconnect so the session is never left
	// half persisted.
	res, err := h.sessionSvc.ClassifySession(context.WithoutCancel(c.Request.Context()), sessionID)
	if errors.Is(err, service.ErrAlreadyClassified) {
		c.JSON(http.StatusConflict, gin.H{"error": "session already classified"})
		return
	}
	if err != nil {
		log.Printf("classify session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to classify session"})
		return
	}

	resp := classifyResponse{
		SessionID:          res.SessionID,
		Segments:           make([]segmentResponse, len(res.Segments)),
		InvalidTransitions: make([]diagnosticResponse, len(res.InvalidTransitions)),
	}
	for i := range res.Segments {
		resp.Segments[i] = toSegmentResponse(&res.Segments[i])
	}
	for i, d := range res.InvalidTransitions {
		resp.InvalidTransitions[i] = diagnosticResponse{
			OldState:   int(d.OldState),
			NewState:   int(d.NewState),
			Transition: d.Transition,
			Timestamp:  d.Point.Timestamp.Unix(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) ClassifyPending(c *gin.Context) {
	report, err := h.sessionSvc.ClassifyPending(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		log.Printf("classify pending: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to classify pending sessions"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *SessionHandler) GetSegments(c *gin.Context) {
	sessionID := c.Param("session_id")

	segments, err := h.sessionSvc.ListSegments(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch segments"})
		return
	}

	results := make([]segmentResponse, len(segments))
	for i := range segments {
		results[i] = toSegmentResponse(&segments[i])
	}
	c.JSON(http.StatusOK, results)
}

func toSegmentResponse(seg *domain.StateSegment) segmentResponse {
	return segmentResponse{
		ID:              seg.ID,
		StateKind:       int(seg.StateKind),
		State:           seg.StateKind.String(),
		StartTime:       seg.StartTime.Unix(),
		EndTime:         seg.EndTime.Unix(),
		DurationSeconds: seg.DurationSeconds,
		StartLatitude:   seg.StartPos.Lat,
		StartLongitude:  seg.StartPos.Lon,
		EndLatitude:     seg.EndPos.Lat,
		EndLongitude:    seg.EndPos.Lon,
		BeaconState:     seg.BeaconState,
		Geofence:        seg.GeofenceRef,
		Transition:      seg.Transition,
	}
}
