// Package session is the review engine exposed to a presentation layer. It
// owns the canonical rows of one source, the pending edit overlay, the review
// filter and the subscribers, and serializes every event under one lock.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ppiankov/catalogspectre/internal/filter"
	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/overlay"
	"github.com/ppiankov/catalogspectre/internal/reconcile"
)

// RowLoader produces the canonical rows of one source
type RowLoader interface {
	LoadRows(ctx context.Context, root string, t models.ResourceType) ([]models.Row, error)
}

// RowEnricher fills derived fields after rows are displayed. It must not
// mutate its input and returns the input unchanged when it cannot enrich.
type RowEnricher interface {
	Enrich(ctx context.Context, rows []models.Row) []models.Row
}

// CommitSink persists committed overlay entries
type CommitSink interface {
	Append(ctx context.Context, entries []overlay.Entry) error
}

// Options configures a Session
type Options struct {
	Loader            RowLoader
	Enricher          RowEnricher
	Sink              CommitSink
	NeedsReviewMarker string
	Mode              filter.Mode
}

// Session drives one reviewer's view of a source
type Session struct {
	id       string
	log      *slog.Logger
	loader   RowLoader
	enricher RowEnricher
	sink     CommitSink

	overlay    *overlay.Overlay
	filter     *filter.Engine
	reconciler *reconcile.Reconciler

	mu          sync.Mutex
	root        string
	rtype       models.ResourceType
	generation  uint64
	shownGen    uint64
	revision    uint64
	canonical   []models.Row
	byKey       map[string]models.ResourceType
	mode        filter.Mode
	err         error
	shown       bool
	closed      bool
	cancels     map[uint64]context.CancelFunc
	subscribers []*subscriber
	nextSubID   int

	inflight int
	idle     *sync.Cond
}

// New creates a session. Nothing is loaded until SetSource or Reload.
func New(opts Options) *Session {
	id := uuid.NewString()
	mode := opts.Mode
	if mode == "" {
		mode = filter.ModeAll
	}
	marker := opts.NeedsReviewMarker
	if marker == "" {
		marker = "Needs Review"
	}
	s := &Session{
		id:         id,
		log:        slog.Default().With(slog.String("session", id)),
		loader:     opts.Loader,
		enricher:   opts.Enricher,
		sink:       opts.Sink,
		overlay:    overlay.New(),
		filter:     filter.NewEngine(marker),
		reconciler: reconcile.New(),
		byKey:      make(map[string]models.ResourceType),
		mode:       mode,
		cancels:    make(map[uint64]context.CancelFunc),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// ID identifies the session in logs
func (s *Session) ID() string { return s.id }

// Generation returns the latest started load generation
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Err returns the error of the latest load, nil once a load succeeds
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Mode returns the active review filter
func (s *Session) Mode() filter.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Pending returns the keys with uncommitted edits
func (s *Session) Pending() []string {
	return s.overlay.Keys()
}

// SetSource switches to another root or resource type and reloads. Loads
// of the previous source become stale. The next displayed generation is
// published as a replacement.
func (s *Session) SetSource(ctx context.Context, root string, t models.ResourceType) {
	s.mu.Lock()
	s.root = root
	s.rtype = t
	s.shown = false
	s.mu.Unlock()

	s.Reload(ctx)
}

// Reload starts a new generation. The load runs in the background; any
// load still in flight is canceled and its result discarded.
func (s *Session) Reload(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for gen, cancel := range s.cancels {
		cancel()
		delete(s.cancels, gen)
	}
	s.generation++
	gen := s.generation
	root, t := s.root, s.rtype
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancels[gen] = cancel
	s.inflight++
	s.mu.Unlock()

	s.log.Debug("load started",
		slog.Uint64("generation", gen),
		slog.String("root", root),
		slog.String("type", string(t)),
	)
	go s.load(loadCtx, gen, root, t)
}

// Wait blocks until every started load, including enrichment, finished.
// It may be called concurrently with Reload.
func (s *Session) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
}

// Close cancels in-flight loads, waits for them and stops every subscriber
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	for gen, cancel := range s.cancels {
		cancel()
		delete(s.cancels, gen)
	}
	subs := s.subscribers
	s.subscribers = nil
	s.mu.Unlock()

	s.Wait()
	for _, sub := range subs {
		sub.close()
		<-sub.exited
	}
}

func (s *Session) load(ctx context.Context, gen uint64, root string, t models.ResourceType) {
	defer s.finish(gen)

	rows, err := s.loader.LoadRows(ctx, root, t)

	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		s.log.Debug("discarding stale load", slog.Uint64("generation", gen))
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.mu.Unlock()
			s.log.Debug("load canceled", slog.Uint64("generation", gen))
			return
		}
		s.err = err
		s.emitLocked(models.Event{Kind: models.EventError, Generation: gen, Err: err})
		s.mu.Unlock()
		s.log.Warn("load failed, keeping previous rows",
			slog.Uint64("generation", gen),
			slog.String("error", err.Error()),
		)
		return
	}
	s.err = nil
	if s.shown {
		rows = carryAnalytics(rows, s.canonical)
	}
	s.setCanonicalLocked(rows)
	s.refreshLocked(gen, nil)
	s.mu.Unlock()

	s.log.Debug("load published", slog.Uint64("generation", gen), slog.Int("rows", len(rows)))

	if s.enricher == nil {
		return
	}
	enriched := s.enricher.Enrich(ctx, rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.closed {
		s.log.Debug("discarding stale enrichment", slog.Uint64("generation", gen))
		return
	}
	// Edits committed since publish live in s.canonical; only the
	// analytics blocks come from the enricher.
	s.setCanonicalLocked(applyAnalytics(s.canonical, enriched))
	s.refreshLocked(gen, nil)
}

// finish cancels the context of gen and marks its load done
func (s *Session) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[gen]; ok {
		cancel()
		delete(s.cancels, gen)
	}
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
}

func (s *Session) setCanonicalLocked(rows []models.Row) {
	s.canonical = rows
	s.revision++
	s.byKey = make(map[string]models.ResourceType, len(rows))
	for _, row := range rows {
		s.byKey[row.Key] = row.Type
	}
}

// displayedLocked merges the overlay over the canonical rows and applies
// the review filter
func (s *Session) displayedLocked() []models.Row {
	snapshot := s.overlay.Snapshot()
	merged := overlay.Apply(s.canonical, snapshot)
	return s.filter.Filter(s.revision, snapshot, s.mode, merged)
}

// refreshLocked publishes the displayed rows: a replacement for the first
// generation of a source, otherwise the patches against what subscribers
// already have. keys limits the comparison to edited rows.
func (s *Session) refreshLocked(gen uint64, keys []string) {
	s.shownGen = gen
	rows := s.displayedLocked()
	if !s.shown {
		s.reconciler.Replace(rows)
		s.shown = true
		s.emitLocked(models.Event{Kind: models.EventReplace, Generation: gen, Rows: rows})
		return
	}

	var patches []models.Patch
	if keys == nil {
		patches = s.reconciler.Reconcile(rows)
	} else {
		patches = s.reconciler.ReconcileKeys(rows, keys)
	}
	if len(patches) == 0 {
		return
	}
	s.emitLocked(models.Event{Kind: models.EventPatch, Generation: gen, Patches: patches})
}

// MergedRows returns the current reconciled, filtered rows
func (s *Session) MergedRows() []models.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayedLocked()
}

// Subscribe registers fn for every later event. When rows are already
// displayed fn first receives them as a replacement. The returned function
// unsubscribes; it never blocks.
func (s *Session) Subscribe(fn func(models.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	sub := newSubscriber(s.nextSubID, fn)
	if s.closed {
		sub.close()
		return func() {}
	}
	s.subscribers = append(s.subscribers, sub)
	if s.shown {
		sub.push(models.Event{Kind: models.EventReplace, Generation: s.shownGen, Rows: s.reconciler.Rows()})
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, candidate := range s.subscribers {
			if candidate == sub {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				break
			}
		}
		sub.close()
	}
}

func (s *Session) emitLocked(event models.Event) {
	for _, sub := range s.subscribers {
		sub.push(event)
	}
}
