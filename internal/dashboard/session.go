package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"carddash/internal/filter"
	"carddash/pkg/models"
)

var (
	// ErrStaleReload is returned by OnReload when a reload started later has
	// already been applied.
	ErrStaleReload = errors.New("dashboard: reload superseded by a newer one")
	ErrNoLoader    = errors.New("dashboard: no loader configured")
)

// Reload results, as reported to Metrics.
const (
	ReloadOK    = "ok"
	ReloadError = "error"
	ReloadStale = "stale"
)

// Loader fetches a fresh collection.
type Loader interface {
	Load(ctx context.Context) (models.Snapshot, error)
}

// Store persists installed collections.
type Store interface {
	Save(ctx context.Context, snap models.Snapshot) error
}

// Metrics receives session measurements.
type Metrics interface {
	ObserveRecompute(d time.Duration, filtered int)
	ObserveReload(result string, cards int)
}

// ReloadEvent describes one finished reload attempt.
type ReloadEvent struct {
	Generation uint64
	Snapshot   models.SnapshotInfo
	Err        error // nil on success
}

// Session owns the dashboard state: the full collection, the active filter,
// the filtered subset and the last computed view.
type Session struct {
	builder   Builder
	loader    Loader
	store     Store
	logger    *zap.Logger
	metrics   Metrics
	observers []func(ReloadEvent)

	started atomic.Uint64

	// persistMu is taken before mu is released, so saves run in install order.
	persistMu sync.Mutex

	mu       sync.RWMutex
	applied  uint64
	loaded   bool
	info     models.SnapshotInfo
	all      []models.Card
	criteria filter.Criteria
	subset   []models.Card
	options  Options
	view     View
}

// Option configures a Session.
type Option func(*Session)

func WithLoader(l Loader) Option {
	return func(s *Session) { s.loader = l }
}

// WithStore saves every installed collection to st. Stale and failed
// reloads are never saved.
func WithStore(st Store) Option {
	return func(s *Session) { s.store = st }
}

func WithBuilder(b Builder) Option {
	return func(s *Session) { s.builder = b }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithObserver registers fn to run after every reload attempt, outside the
// session lock.
func WithObserver(fn func(ReloadEvent)) Option {
	return func(s *Session) { s.observers = append(s.observers, fn) }
}

// NewSession returns a session over an empty collection.
func NewSession(opts ...Option) *Session {
	s := &Session{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("dashboard")

	s.mu.Lock()
	s.recompute()
	s.mu.Unlock()
	return s
}

// OnFilterChanged makes c the active filter and recomputes the view from the
// full collection.
func (s *Session) OnFilterChanged(c filter.Criteria) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.criteria = c
	s.recompute()
	return s.view
}

// OnReload fetches a new collection and, unless a newer reload won the race,
// installs it with empty criteria. On error the state is left untouched.
func (s *Session) OnReload(ctx context.Context) (View, error) {
	if s.loader == nil {
		return View{}, ErrNoLoader
	}

	gen := s.started.Add(1)
	log := s.logger.With(zap.Uint64("generation", gen))

	snap, err := s.loader.Load(ctx)
	if err != nil {
		log.Warn("reload failed", zap.Error(err))
		s.observeReload(ReloadError, 0)
		s.notify(ReloadEvent{Generation: gen, Err: err})
		return View{}, fmt.Errorf("reload: %w", err)
	}

	s.mu.Lock()
	if gen <= s.applied {
		s.mu.Unlock()
		log.Info("discarding stale reload", zap.String("snapshot", snap.ID))
		s.observeReload(ReloadStale, len(snap.Cards))
		return View{}, ErrStaleReload
	}
	s.applied = gen
	s.install(snap)
	view := s.view
	info := s.info
	if s.store != nil {
		s.persistMu.Lock()
	}
	s.mu.Unlock()
	s.persist(ctx, log, snap)

	log.Info("collection reloaded",
		zap.String("snapshot", info.ID),
		zap.String("source", info.Source),
		zap.Int("cards", info.CardCount),
	)
	s.observeReload(ReloadOK, info.CardCount)
	s.notify(ReloadEvent{Generation: gen, Snapshot: info})
	return view, nil
}

// Restore seeds the session from a stored snapshot. It is a no-op, returning
// false, once any collection has been loaded.
func (s *Session) Restore(snap models.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return false
	}
	s.install(snap)
	s.logger.Info("restored snapshot",
		zap.String("snapshot", snap.ID),
		zap.Int("cards", len(snap.Cards)),
	)
	return true
}

// View computes the view for c without changing the active filter.
func (s *Session) View(c filter.Criteria) View {
	s.mu.RLock()
	all := s.all
	s.mu.RUnlock()

	start := time.Now()
	subset := filter.Apply(all, c)
	v := s.builder.Build(all, subset, c)
	s.observeRecompute(time.Since(start), len(subset))
	return v
}

func (s *Session) Current() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Session) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options
}

func (s *Session) Criteria() filter.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// Cards returns the full collection. Callers must not modify it.
func (s *Session) Cards() []models.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.all
}

// Filtered returns the active subset. Callers must not modify it.
func (s *Session) Filtered() []models.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subset
}

// Loaded reports whether a collection has been installed, and describes it.
func (s *Session) Loaded() (models.SnapshotInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, s.loaded
}

// install replaces the collection. Caller holds mu.
func (s *Session) install(snap models.Snapshot) {
	s.all = snap.Cards
	if s.all == nil {
		s.all = []models.Card{}
	}
	s.info = snap.Info()
	s.loaded = true
	s.options = BuildOptions(s.all)
	s.criteria = filter.Criteria{}
	s.recompute()
}

// recompute rebuilds subset and view. Caller holds mu.
func (s *Session) recompute() {
	start := time.Now()
	s.subset = filter.Apply(s.all, s.criteria)
	s.view = s.builder.Build(s.all, s.subset, s.criteria)
	s.observeRecompute(time.Since(start), len(s.subset))
}

// persist saves snap and releases persistMu. Failures are logged only.
func (s *Session) persist(ctx context.Context, log *zap.Logger, snap models.Snapshot) {
	if s.store == nil {
		return
	}
	defer s.persistMu.Unlock()
	if err := s.store.Save(ctx, snap); err != nil {
		log.Error("persist snapshot", zap.String("snapshot", snap.ID), zap.Error(err))
	}
}

func (s *Session) observeRecompute(d time.Duration, filtered int) {
	if s.metrics != nil {
		s.metrics.ObserveRecompute(d, filtered)
	}
}

func (s *Session) observeReload(result string, cards int) {
	if s.metrics != nil {
		s.metrics.ObserveReload(result, cards)
	}
}

func (s *Session) notify(ev ReloadEvent) {
	for _, fn := range s.observers {
		fn(ev)
	}
}
