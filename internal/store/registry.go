package store

import (
	"context"
	"log/slog"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/event"
	"github.com/dev-emon1/shoppers-link/internal/repository"
)

// Registry opens the Store for an owner and collection kind. Every Open reads
// the latest state from the repository, and every mutation is an atomic
// repository update, so handles opened by different requests or replicas
// never lose each other's writes.
type Registry struct {
	repo      repository.StateRepository
	publisher event.Publisher
	logger    *slog.Logger
}

// NewRegistry creates a registry backed by repo.
func NewRegistry(repo repository.StateRepository, publisher event.Publisher, logger *slog.Logger) *Registry {
	return &Registry{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Open loads the owner's store.
func (r *Registry) Open(ctx context.Context, kind domain.Kind, ownerID string) (*Store, error) {
	s, err := Open(ctx, kind, ownerID, r.repo, r.publisher, r.logger)
	if err != nil {
		storeOpens.WithLabelValues(string(kind), "error").Inc()
		return nil, err
	}
	storeOpens.WithLabelValues(string(kind), "ok").Inc()
	return s, nil
}
