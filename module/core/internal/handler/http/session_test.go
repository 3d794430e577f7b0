package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/opstate/module/core/domain"
	"github.com/nandanugg/opstate/module/core/service"
)

type mockSessionService struct {
	classifySessionFn func(ctx context.Context, sessionID string) (*domain.ClassificationResult, error)
	classifyPendingFn func(ctx context.Context) (*domain.BatchReport, error)
	listSegmentsFn    func(ctx context.Context, sessionID string) ([]domain.StateSegment, error)
}

func (m *mockSessionService) ClassifySession(ctx context.Context, sessionID string) (*domain.ClassificationResult, error) {
	return m.classifySessionFn(ctx, sessionID)
}

func (m *mockSessionService) ClassifyPending(ctx context.Context) (*domain.BatchReport, error) {
	return m.classifyPendingFn(ctx)
}

func (m *mockSessionService) ListSegments(ctx context.Context, sessionID string) ([]domain.StateSegment, error) {
	return m.listSegmentsFn(ctx, sessionID)
}

func setupRouter(svc sessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSessionHandler(svc)
	h.Register(r.Group(""))
	return r
}

func TestClassifySession_Success(t *testing.T) {
	start := time.Unix(1715000000, 0)
	end := time.Unix(1715000600, 0)
	beacon := false
	svc := &mockSessionService{
		classifySessionFn: func(_ context.Context, sessionID string) (*domain.ClassificationResult, error) {
			if sessionID != "S-100" {
				t.Fatalf("unexpected sessionID: %s", sessionID)
			}
			return &domain.ClassificationResult{
				SessionID: "S-100",
				Segments: []domain.StateSegment{{
					ID:              "seg-1",
					SessionID:       "S-100",
					StateKind:       domain.StateParkedOperational,
					StartTime:       start,
					EndTime:         end,
					DurationSeconds: 600,
					BeaconState:     &beacon,
					GeofenceRef:     &domain.GeofenceRef{ID: "P1", Name: "Base Norte"},
					Transition:      "-1 → 1",
				}},
				InvalidTransitions: []domain.InvalidTransition{{
					SessionID:  "S-100",
					OldState:   domain.StateOnScene,
					NewState:   domain.StateParkedOperational,
					Point:      domain.TelemetryPoint{Timestamp: end},
					Transition: "3 → 1 (unexpected)",
				}},
			}, nil
		},
	}

	r := setupRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/sessions/S-100/classify", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp classifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(resp.Segments))
	}
	seg := resp.Segments[0]
	if seg.StateKind != 1 || seg.State != "parked_operational" {
		t.Errorf("expected parked_operational(1), got %s(%d)", seg.State, seg.StateKind)
	}
	if seg.StartTime != 1715000000 || seg.EndTime != 1715000600 {
		t.Errorf("unexpected interval %d-%d", seg.StartTime, seg.EndTime)
	}
	if seg.Geofence == nil || seg.Geofence.ID != "P1" {
		t.Errorf("expected geofence P1, got %+v", seg.Geofence)
	}
	if len(resp.InvalidTransitions) != 1 || resp.InvalidTransitions[0].Transition != "3 → 1 (unexpected)" {
		t.Errorf("unexpected diagnostics: %+v", resp.InvalidTransitions)
	}
}

func TestClassifySession_EmptySession(t *testing.T) {
	svc := &mockSessionService{
		classifySessionFn: func(_ context.Context, sessionID string) (*domain.ClassificationResult, error) {
			return &domain.ClassificationResult{SessionID: sessionID}, nil
		},
	}

	r := setupRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/sessions/EMPTY/classify", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(resp["segments"]) != "[]" {
		t.Errorf("expected empty segments array, got %s", resp["segments"])
	}
}

func TestClassifySession_AlreadyClassified(t *testing.T) {
	svc := &mockSessionService{
		classifySessionFn: func(_ context.Context, sessionID string) (*domain.ClassificationResult, error) {
			return nil, fmt.Errorf("session %s: %w", sessionID, service.ErrAlreadyClassified)
		},
	}

	r := setupRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/sessions/S-100/classify", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestClassifySession_ServiceError(t *testing.T) {
	svc := &mockSessionService{
		classifySessionFn: func(_ context.Context, _ string) (*domain.ClassificationResult, error) {
			return nil, errors.New("db error")
		},
	}

	r := setupRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/sessions/S-100/classify", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestClassifySession_ClientDisconnectDoesNotCancelRun(t *testing.T) {
	svc := &mockSessionService{
		classifySessionFn: func(ctx context.Context, sessionID string) (*domain.ClassificationResult, error) {
			if err := ctx.Err(); err != nil {
				t.Errorf("classification context cancelled: %v", err)
			}
			return &domain.ClassificationResult{SessionID: sessionID}, nil
		},
		classifyPendingFn: func(ctx context.Context) (*domain.BatchReport, error) {
			if err := ctx.Err(); err != nil {
				t.Errorf("batch context cancelled: %v", err)
			}
			return &domain.BatchReport{Failed: map[string]string{}}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := setupRouter(svc)
	for _, path := range []string{"/sessions/S-1/classify", "/sessions/classify-pending"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(ctx, "POST", path, nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestClassifyPending_Success(t *testing.T) {
	svc := &mockSessionService{
		classifyPendingFn: func(_ context.Context) (*domain.BatchReport, error) {
			return &domain.BatchReport{Total: 3, Classified: 2, Failed: map[string]string{"S-3": "db error"}}, nil
		},
	}

	r := setupRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/sessions/classify-pending", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp domain.BatchReport
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 3 || resp.Classified != 2 {
		t.Errorf("unexpected report: %+v", resp)
	}
	if resp.Failed["S-3"] != "db error" {
		t.Errorf("expected S-3 failure, got %v", resp.Failed)
	}
}

func TestClassifyPending_Error(t *testing.T) {
	svc := &mockSessionService{
		classifyPendingFn: func(_ context.Context) (*domain.BatchReport, error) {
			return nil, errors.New("db error")
		},
	}

	r := setupRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/sessions/classify-pending", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestGetSegments_Success(t *testing.T) {
	svc := &mockSessionService{
		listSegmentsFn: func(_ context.Context, sessionID string) ([]domain.StateSegment, error) {
			return []domain.StateSegment{
				{ID: "a", SessionID: sessionID, StateKind: domain.StateEmergencyDeparture},
				{ID: "b", SessionID: sessionID, StateKind: domain.StateOnScene},
			}, nil
		},
	}

	r := setupRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/sessions/S-100/segments", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp []segmentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(resp))
	}
	if resp[1].State != "on_scene" {
		t.Errorf("expected on_scene, got %s", resp[1].State)
	}
}

func TestGetSegments_Error(t *testing.T) {
	svc := &mockSessionService{
		listSegmentsFn: func(_ context.Context, _ string) ([]domain.StateSegment, error) {
			return nil, errors.New("db error")
		},
	}

	r := setupRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/sessions/S-100/segments", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
