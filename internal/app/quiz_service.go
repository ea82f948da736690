package app

import (
	"context"
	"fmt"

	"cuequiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionRepository abstracts where live session runners are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Put(runner *Runner)
	Get(sessionID string) (*Runner, bool)
	Delete(sessionID string)
}

// CatalogRepository loads question catalogs (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context, catalogID string) (domain.Catalog, error)
}

// ServiceConfig carries the shared collaborators for every session.
type ServiceConfig struct {
	Options  Options
	Clock    Clock
	Observer Observer
	Logger   zerolog.Logger
}

// QuizService opens and tracks quiz attempts.
type QuizService struct {
	sessions SessionRepository
	catalogs CatalogRepository
	cfg      ServiceConfig
	newID    func() string
}

func NewQuizService(store SessionRepository, catalogs CatalogRepository, cfg ServiceConfig) *QuizService {
	return &QuizService{
		sessions: store,
		catalogs: catalogs,
		cfg:      cfg,
		newID:    uuid.NewString,
	}
}

// Open creates a session for catalogID in the instructions phase. The caller
// must run the returned runner and Close it when the client goes away.
func (s *QuizService) Open(ctx context.Context, catalogID string, gate PermissionGate, player MediaPlayer) (*Runner, error) {
	catalog, err := s.catalogs.GetCatalog(ctx, catalogID)
	if err != nil {
		return nil, fmt.Errorf("open session for %q: %w", catalogID, err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("open session for %q: %w", catalogID, err)
	}

	session := NewSession(s.newID(), catalog, s.cfg.Options)
	runner := NewRunner(session, RunnerDeps{
		Gate:     gate,
		Player:   player,
		Clock:    s.cfg.Clock,
		Observer: s.cfg.Observer,
		Logger:   s.cfg.Logger,
	})
	s.sessions.Put(runner)
	s.cfg.Logger.Debug().Str("session", runner.ID()).Str("catalog", catalogID).Msg("session opened")
	return runner, nil
}

// Get returns a live session.
func (s *QuizService) Get(_ context.Context, sessionID string) (*Runner, error) {
	runner, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return runner, nil
}

// Close drops a session. Its state is discarded.
func (s *QuizService) Close(_ context.Context, sessionID string) {
	s.sessions.Delete(sessionID)
}
