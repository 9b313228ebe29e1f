// Package source fetches the card collection from the upstream API or a
// local mirror file and stamps it as a snapshot.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carddash/pkg/models"
)

// Source is implemented by each place the collection can be read from.
type Source interface {
	Name() string
	FetchAll(ctx context.Context) ([]models.Card, error)
}

// Loader fetches from a Source and turns the result into a Snapshot.
// It implements dashboard.Loader.
type Loader struct {
	Source Source
	Logger *zap.Logger
	Now    func() time.Time
}

// NewLoader returns a loader for src. Persisting the result is up to the
// caller.
func NewLoader(src Source, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		Source: src,
		Logger: logger.Named("source"),
		Now:    time.Now,
	}
}

// Load fetches the whole collection once.
func (l *Loader) Load(ctx context.Context) (models.Snapshot, error) {
	name := l.Source.Name()
	l.Logger.Debug("fetching", zap.String("source", name))

	cards, err := l.Source.FetchAll(ctx)
	if err != nil {
		l.Logger.Warn("fetch failed", zap.String("source", name), zap.Error(err))
		return models.Snapshot{}, fmt.Errorf("fetch %s: %w", name, err)
	}

	snap := models.Snapshot{
		ID:        uuid.NewString(),
		Source:    name,
		FetchedAt: l.now(),
		Cards:     cards,
	}
	l.Logger.Info("fetched",
		zap.String("source", name),
		zap.String("snapshot", snap.ID),
		zap.Int("cards", len(cards)),
	)
	return snap, nil
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}
