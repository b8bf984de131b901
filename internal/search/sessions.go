package search

import (
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dev-emon1/shoppers-link/internal/repository"
)

// Sessions holds one pipeline per client session. The least recently used
// session is dropped once size sessions are held.
type Sessions struct {
	searcher Searcher
	cache    repository.SessionCache
	cfg      Config
	logger   *slog.Logger
	pipes    *lru.Cache[string, *Pipeline]
}

// NewSessions creates a bounded session set.
func NewSessions(searcher Searcher, cache repository.SessionCache, cfg Config, size int, logger *slog.Logger) (*Sessions, error) {
	pipes, err := lru.New[string, *Pipeline](size)
	if err != nil {
		return nil, fmt.Errorf("create search session cache: %w", err)
	}
	return &Sessions{
		searcher: searcher,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		pipes:    pipes,
	}, nil
}

// Pipeline returns the pipeline of sessionID, creating it on first use.
func (s *Sessions) Pipeline(sessionID string) *Pipeline {
	if p, ok := s.pipes.Get(sessionID); ok {
		return p
	}
	p := NewPipeline(s.searcher, s.cache, s.cfg, s.logger.With(slog.String("search_session", sessionID)))
	if prev, ok, _ := s.pipes.PeekOrAdd(sessionID, p); ok {
		return prev
	}
	activeSessions.Set(float64(s.pipes.Len()))
	return p
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.pipes.Len()
}
