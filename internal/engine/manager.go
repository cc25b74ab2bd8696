package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/syncs"

	"github.com/seantiz/duckview/internal/bundle"
	"github.com/seantiz/duckview/internal/dataset"
)

const defaultCloseConcurrency = 4

// ManagerConfig holds the defaults applied to every session a Manager opens.
type ManagerConfig struct {
	Registry         *bundle.Registry
	Bundles          []string
	Fetcher          *dataset.Fetcher
	WorkDir          string
	QueryTimeout     time.Duration
	CloseConcurrency int
	Logger           *slog.Logger
}

// Manager tracks live sessions by id.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager with no sessions.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.CloseConcurrency <= 0 {
		cfg.CloseConcurrency = defaultCloseConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*Session)}
}

// Open initializes a session and tracks it until it is released or closed.
// Fields left empty in opts are taken from the manager config.
func (m *Manager) Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Registry == nil {
		opts.Registry = m.cfg.Registry
	}
	if len(opts.Bundles) == 0 {
		opts.Bundles = m.cfg.Bundles
	}
	if opts.Fetcher == nil {
		opts.Fetcher = m.cfg.Fetcher
	}
	if opts.WorkDir == "" {
		opts.WorkDir = m.cfg.WorkDir
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = m.cfg.QueryTimeout
	}
	if opts.Logger == nil {
		opts.Logger = m.cfg.Logger
	}

	s, err := Initialize(ctx, opts)
	if err != nil {
		return nil, err
	}

	id := s.ID()
	s.onClose = func() { m.forget(id) }

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Release closes the session with the given id. Unknown ids are ignored.
func (m *Manager) Release(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return nil
	}
	return s.Close()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns info for every live session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// CloseAll closes every live session, a few at a time.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	if len(sessions) == 0 {
		return nil
	}
	m.cfg.Logger.Info("closing engine sessions", "count", len(sessions))

	wg := syncs.NewErrSizedGroup(m.cfg.CloseConcurrency, syncs.Context(ctx))
	for _, s := range sessions {
		wg.Go(func() error {
			if err := s.Close(); err != nil {
				return fmt.Errorf("close session %s: %w", s.ID(), err)
			}
			return nil
		})
	}
	return wg.Wait()
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
