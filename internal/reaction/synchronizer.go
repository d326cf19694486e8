// Package reaction keeps like/dislike tallies for the subjects a view shows
// and applies the viewer's toggles optimistically.
//
// Each subject is either settled (display equals the last server tally) or
// pending (display is speculative). A toggle made while another is pending
// on the same subject supersedes it: the older request still runs, but its
// response never reaches the display. Only the newest toggle settles or
// rolls back the subject.
package reaction

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nigersavoir/savoir-client/internal/bus"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMutationTimeout bounds a toggle request when no timeout is configured.
const DefaultMutationTimeout = 10 * time.Second

var (
	ErrSuperseded      = errors.New("reaction toggle superseded by a newer one")
	ErrUnknownReaction = errors.New("unknown reaction")
)

// Remote is the server side of reactions for one kind of subject.
type Remote interface {
	Summary(ctx context.Context, ids []int64) ([]domain.ReactionTally, error)
	SetReaction(ctx context.Context, id int64, r domain.Reaction) (domain.ReactionTally, error)
}

type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

type entry struct {
	settled domain.ReactionTally
	display domain.ReactionTally
	// generation counts toggles; a response is applied only if no toggle
	// started after its request.
	generation uint64
	// settledGen is the generation whose response (or seed) produced settled.
	settledGen uint64
	pending    bool
}

type Synchronizer struct {
	mu      sync.Mutex
	entries map[int64]*entry

	remote    Remote
	auth      Authenticator
	bus       *bus.Bus
	logger    *zap.Logger
	timeout   time.Duration
	onFailure func(subjectID int64, err error)
	sfg       singleflight.Group // collapses identical concurrent seeds
}

type Option func(*Synchronizer)

// WithTimeout bounds each toggle request; exceeding it counts as a failure.
func WithTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithFailureHandler registers fn to be told, once per toggle, that a toggle
// failed and was rolled back. Superseded toggles never reach it.
func WithFailureHandler(fn func(subjectID int64, err error)) Option {
	return func(s *Synchronizer) { s.onFailure = fn }
}

func New(remote Remote, auth Authenticator, b *bus.Bus, logger *zap.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		entries: make(map[int64]*entry),
		remote:  remote,
		auth:    auth,
		bus:     b,
		logger:  logger,
		timeout: DefaultMutationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every change of a displayed tally.
func (s *Synchronizer) Subscribe(fn func()) bus.Unsubscribe {
	return s.bus.Subscribe(bus.TopicReactionsChanged, fn)
}

// Tally returns the displayed tally of id.
func (s *Synchronizer) Tally(id int64) (domain.ReactionTally, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.ReactionTally{}, false
	}
	return e.display, true
}

// Pending reports whether a toggle on id is awaiting its response.
func (s *Synchronizer) Pending(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && e.pending
}

// Snapshot returns the displayed tallies of every tracked subject.
func (s *Synchronizer) Snapshot() map[int64]domain.ReactionTally {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]domain.ReactionTally, len(s.entries))
	for id, e := range s.entries {
		out[id] = e.display
	}
	return out
}

// Seed loads the server tallies of ids. Subjects toggled while the request
// was in flight keep their display; a subject pending from before only gets
// its settled base refreshed. Subjects missing from the response start at zero.
func (s *Synchronizer) Seed(ctx context.Context, ids []int64) error {
	ids = uniqueSorted(ids)
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	before := make(map[int64]uint64, len(ids))
	for _, id := range ids {
		before[id] = s.entryLocked(id).generation
	}
	s.mu.Unlock()

	v, err, shared := s.sfg.Do(seedKey(ids), func() (any, error) {
		return s.remote.Summary(ctx, ids)
	})
	if err != nil {
		return fmt.Errorf("seed reactions: %w", err)
	}
	if shared {
		s.logger.Debug("reaction seed shared with concurrent caller", zap.Int("subjects", len(ids)))
	}

	s.mu.Lock()
	for _, t := range v.([]domain.ReactionTally) {
		gen, requested := before[t.SubjectID]
		if !requested {
			continue
		}
		e := s.entryLocked(t.SubjectID)
		if e.generation != gen {
			continue
		}
		e.settled = t
		e.settledGen = gen
		if !e.pending {
			e.display = t
		}
	}
	s.mu.Unlock()

	s.bus.Publish(bus.TopicReactionsChanged)
	return nil
}

// Retain forgets every subject not in ids, except those with a toggle in flight.
func (s *Synchronizer) Retain(ids []int64) {
	keep := make(map[int64]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	s.mu.Lock()
	for id, e := range s.entries {
		if !keep[id] && !e.pending {
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()
}

// Toggle applies r to the displayed tally of id right away and sends it to
// the server. On success the server tally replaces the display; on failure the
// display returns to the last settled tally and the failure handler runs. If
// a newer toggle on id starts before the response arrives, Toggle returns
// ErrSuperseded with the current display.
func (s *Synchronizer) Toggle(ctx context.Context, id int64, r domain.Reaction) (domain.ReactionTally, error) {
	if r != domain.ReactionPositive && r != domain.ReactionNegative {
		return domain.ReactionTally{}, fmt.Errorf("%w: %q", ErrUnknownReaction, r)
	}
	if !s.auth.IsAuthenticated(ctx) {
		current, _ := s.Tally(id)
		return current, domain.ErrAuthenticationRequired
	}

	s.mu.Lock()
	e := s.entryLocked(id)
	e.generation++
	gen := e.generation
	e.display = e.display.Toggle(r)
	e.pending = true
	s.mu.Unlock()
	s.bus.Publish(bus.TopicReactionsChanged)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	tally, err := s.remote.SetReaction(callCtx, id, r)
	cancel()

	s.mu.Lock()
	if e.generation != gen {
		// A superseded success becomes the rollback target unless a newer
		// response has already settled the subject.
		if err == nil && gen > e.settledGen {
			e.settled = tally
			e.settledGen = gen
		}
		current := e.display
		s.mu.Unlock()
		s.logger.Debug("ignoring superseded reaction response",
			zap.Int64("subject_id", id),
			zap.Uint64("generation", gen),
			zap.Error(err))
		return current, ErrSuperseded
	}

	e.pending = false
	if err != nil {
		e.display = e.settled
		restored := e.display
		s.mu.Unlock()

		s.logger.Warn("reaction toggle failed, rolled back",
			zap.Int64("subject_id", id),
			zap.String("reaction", string(r)),
			zap.Error(err))
		s.bus.Publish(bus.TopicReactionsChanged)
		if s.onFailure != nil {
			s.onFailure(id, err)
		}
		return restored, fmt.Errorf("toggle reaction on %d: %w", id, err)
	}

	e.settled = tally
	e.settledGen = gen
	e.display = tally
	s.mu.Unlock()
	s.bus.Publish(bus.TopicReactionsChanged)
	return tally, nil
}

// entryLocked returns the entry for id, creating a zero tally. s.mu must be held.
func (s *Synchronizer) entryLocked(id int64) *entry {
	e, ok := s.entries[id]
	if !ok {
		zero := domain.ReactionTally{SubjectID: id}
		e = &entry{settled: zero, display: zero}
		s.entries[id] = e
	}
	return e
}

func uniqueSorted(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func seedKey(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
