package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
)

// createTimeout bounds a shared create call, which outlives the caller that started it.
const createTimeout = 30 * time.Second

// ErrEmptyRemoteID is returned when a CreateFunc succeeds without an identifier.
var ErrEmptyRemoteID = errors.New("remote conversation id is empty")

// CreateFunc opens a new remote conversation for name and returns its identifier.
type CreateFunc func(ctx context.Context, name string) (string, error)

// Store resolves session names to remote conversations.
type Store interface {
	// GetOrCreate returns the session registered under name, invoking create when there
	// is none. An empty name is replaced by a generated one. The bool reports whether
	// create was called for this result.
	GetOrCreate(ctx context.Context, name string, create CreateFunc) (agent.Session, bool, error)
}

// Options bounds a MemoryStore. Zero values mean unbounded. TTL is an idle lifetime:
// every lookup that hits an entry restarts it.
type Options struct {
	Capacity int
	TTL      time.Duration
}

// MemoryStore is a Store kept in process memory.
//
// Concurrent callers resolving the same unknown name share a single create call; the
// first successful result is the only one ever stored for that name.
type MemoryStore struct {
	entries *expirable.LRU[string, agent.Session]
	flights singleflight.Group
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts Options) *MemoryStore {
	onEvict := func(name string, s agent.Session) {
		log.Printf("[session] evicted thread name=%s id=%s", name, s.RemoteID)
	}
	return &MemoryStore{
		entries: expirable.NewLRU[string, agent.Session](opts.Capacity, onEvict, opts.TTL),
		now:     time.Now,
	}
}

// GetOrCreate implements Store. Names are used as given; only the empty name is
// replaced by a generated one.
func (s *MemoryStore) GetOrCreate(ctx context.Context, name string, create CreateFunc) (agent.Session, bool, error) {
	if name == "" {
		name = NewName(s.now())
	} else if existing, ok := s.touch(name); ok {
		return existing, false, nil
	}

	created := false
	flight := s.flights.DoChan(name, func() (any, error) {
		// A flight for this name may have finished between the lookup and DoChan.
		if existing, ok := s.touch(name); ok {
			return existing, nil
		}

		createCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), createTimeout)
		defer cancel()

		remoteID, err := create(createCtx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create thread %q: %w", name, err)
		}
		if remoteID == "" {
			return nil, ErrEmptyRemoteID
		}

		session := agent.Session{Name: name, RemoteID: remoteID, CreatedAt: s.now().UTC()}
		s.entries.Add(name, session)
		created = true
		log.Printf("[session] created thread name=%s id=%s", name, remoteID)
		return session, nil
	})

	select {
	case <-ctx.Done():
		return agent.Session{}, false, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return agent.Session{}, false, res.Err
		}
		return res.Val.(agent.Session), created, nil
	}
}

// touch looks name up and, on a hit, re-adds it so its expiry starts over.
func (s *MemoryStore) touch(name string) (agent.Session, bool) {
	existing, ok := s.entries.Get(name)
	if ok {
		s.entries.Add(name, existing)
	}
	return existing, ok
}

// Get returns the session registered under name without creating one.
func (s *MemoryStore) Get(name string) (agent.Session, bool) {
	return s.entries.Get(name)
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

// NewName generates a session name from the time and a random suffix.
func NewName(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("thread_%d_%s", now.Unix(), suffix)
}
