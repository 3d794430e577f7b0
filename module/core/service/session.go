package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nandanugg/opstate/module/core/domain"
	"github.com/nandanugg/opstate/module/core/internal/repository/database"
	"github.com/nandanugg/opstate/module/core/internal/repository/publisher"
)

var ErrAlreadyClassified = errors.New("session already has segments")

const DefaultWorkers = 4

type SessionConfig struct {
	Stop    StopWindowConfig
	Index   GeofenceIndexConfig
	Workers int
}

// SessionService loads a session's points, runs the classifier and flushes
// each segment to the repository as it closes.
type SessionService struct {
	telemetry database.TelemetryRepository
	segments  database.SegmentRepository
	catalog   database.GeofenceRepository
	publisher publisher.DiagnosticPublisher
	remote    GeofenceLookup
	cfg       SessionConfig

	// inflight collapses concurrent runs of one session in this process.
	inflight singleflight.Group
}

// NewSessionService accepts a nil remote lookup; zones are then resolved
// from the catalog polygons only.
func NewSessionService(
	telemetry database.TelemetryRepository,
	segments database.SegmentRepository,
	catalog database.GeofenceRepository,
	pub publisher.DiagnosticPublisher,
	remote GeofenceLookup,
	cfg SessionConfig,
) *SessionService {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &SessionService{
		telemetry: telemetry,
		segments:  segments,
		catalog:   catalog,
		publisher: pub,
		remote:    remote,
		cfg:       cfg,
	}
}

// LoadZones reads parks and workshops once for a classification run. Parks
// are required; a missing workshop catalog leaves the workshop set empty.
func (s *SessionService) LoadZones(ctx context.Context) (*LocalGeofence, error) {
	parks, err := s.catalog.ListGeofences(ctx, domain.GeofencePark)
	if err != nil {
		return nil, fmt.Errorf("load parks: %w", err)
	}

	workshops, err := s.catalog.ListGeofences(ctx, domain.GeofenceWorkshop)
	if err != nil {
		log.Printf("load workshops: %v; continuing without workshop zones", err)
		workshops = nil
	}

	return NewLocalGeofence(append(parks, workshops...)), nil
}

func (s *SessionService) newClassifier(local *LocalGeofence) *StateClassifier {
	return NewStateClassifier(NewGeofenceIndex(s.remote, local, s.cfg.Index), s.cfg.Stop)
}

func (s *SessionService) ClassifySession(ctx context.Context, sessionID string) (*domain.ClassificationResult, error) {
	local, err := s.LoadZones(ctx)
	if err != nil {
		return nil, err
	}
	return s.classify(ctx, s.newClassifier(local), sessionID)
}

// classify runs one session at most once at a time. Concurrent callers in this
// process share the result of the run in flight; runs in other processes are
// serialized by the repository's session lock, and the later one then sees
// ErrAlreadyClassified.
func (s *SessionService) classify(ctx context.Context, c *StateClassifier, sessionID string) (*domain.ClassificationResult, error) {
	v, err, _ := s.inflight.Do(sessionID, func() (any, error) {
		var res *domain.ClassificationResult
		err := s.segments.WithSessionLock(ctx, sessionID, func(ctx context.Context) error {
			var err error
			res, err = s.classifyLocked(ctx, c, sessionID)
			return err
		})
		return res, err
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return v.(*domain.ClassificationResult), nil
}

func (s *SessionService) classifyLocked(ctx context.Context, c *StateClassifier, sessionID string) (*domain.ClassificationResult, error) {
	done, err := s.segments.HasSegments(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("check segments: %w", err)
	}
	if done {
		return nil, ErrAlreadyClassified
	}

	points, err := s.telemetry.GetSessionPoints(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load points: %w", err)
	}

	res := &domain.ClassificationResult{
		SessionID:          sessionID,
		Segments:           []domain.StateSegment{},
		InvalidTransitions: []domain.InvalidTransition{},
	}
	diags, err := c.Run(ctx, sessionID, points, func(seg domain.StateSegment) error {
		id, err := s.segments.Persist(ctx, seg)
		if err != nil {
			return fmt.Errorf("persist segment: %w", err)
		}
		seg.ID = id
		res.Segments = append(res.Segments, seg)
		return nil
	})
	res.InvalidTransitions = append(res.InvalidTransitions, diags...)
	s.publish(ctx, diags)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SessionService) publish(ctx context.Context, diags []domain.InvalidTransition) {
	if s.publisher == nil {
		return
	}
	for i := range diags {
		if err := s.publisher.PublishInvalidTransition(ctx, &diags[i]); err != nil {
			log.Printf("publish invalid transition for session %s: %v", diags[i].SessionID, err)
		}
	}
}

// ClassifyPending classifies every session that has points but no segments.
// Sessions run concurrently and share one zone index; a failed session is
// reported without affecting the others.
func (s *SessionService) ClassifyPending(ctx context.Context) (*domain.BatchReport, error) {
	ids, err := s.telemetry.ListSessionsWithoutSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending sessions: %w", err)
	}

	report := &domain.BatchReport{Total: len(ids), Failed: map[string]string{}}
	if len(ids) == 0 {
		return report, nil
	}

	local, err := s.LoadZones(ctx)
	if err != nil {
		return nil, err
	}
	c := s.newClassifier(local)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := s.classify(ctx, c, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("classify %v", err)
				report.Failed[id] = err.Error()
				return nil
			}
			report.Classified++
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("classified %d/%d pending sessions", report.Classified, report.Total)
	return report, nil
}

func (s *SessionService) ListSegments(ctx context.Context, sessionID string) ([]domain.StateSegment, error) {
	return s.segments.ListBySession(ctx, sessionID)
}
