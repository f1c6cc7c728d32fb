package attachment

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ManagerConfig configures a Manager's default capacity and expiration
// sweep.
type ManagerConfig struct {
	// DefaultCapacity is the byte capacity given to attachments created
	// via EnsureCreated when the caller doesn't specify one.
	DefaultCapacity uint64
	// Expiration is how long an attachment may go untouched before it is
	// eligible for removal. Clamped to at least MinExpiration.
	Expiration time.Duration
	// SweepInterval is how often Run's background goroutine checks for
	// expired attachments. Zero disables the periodic sweep; Run may still
	// be started, and then only blocks until its context is done.
	SweepInterval time.Duration
}

// MinExpiration is the floor applied to ManagerConfig.Expiration.
const MinExpiration = time.Minute

// DefaultExpiration matches the original SDK's attachment manager
// default.
const DefaultExpiration = 12 * time.Minute

// Manager owns a set of named attachments, keyed by ID, and expires ones
// that have gone unused for longer than its configured timeout.
//
// Expiration is both opportunistic -- every EnsureCreated/Get call
// sweeps first (Attachment.CreateWriter/CreateReader do not sweep) --
// and, optionally, periodic via Run,
// since the spec leaves the choice of sweep strategy to the
// implementation.
type Manager struct {
	mu   sync.Mutex
	byID map[string]*Attachment
	cfg  ManagerConfig
	log  *zap.Logger
}

// NewManager constructs a Manager from cfg, clamping Expiration to
// MinExpiration and filling in DefaultExpiration if unset.
func NewManager(cfg ManagerConfig, log *zap.Logger) *Manager {
	if cfg.Expiration == 0 {
		cfg.Expiration = DefaultExpiration
	}
	if cfg.Expiration < MinExpiration {
		cfg.Expiration = MinExpiration
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		byID: make(map[string]*Attachment),
		cfg:  cfg,
		log:  log,
	}
}

// EnsureCreated returns the attachment for id, creating it with
// capacity (or cfg.DefaultCapacity if capacity is 0) if it doesn't yet
// exist.
func (m *Manager) EnsureCreated(id ID, capacity uint64) (*Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()

	if a, ok := m.byID[id.String()]; ok {
		return a, nil
	}

	if capacity == 0 {
		capacity = m.cfg.DefaultCapacity
	}
	a, err := New(id, capacity)
	if err != nil {
		return nil, err
	}
	m.byID[id.String()] = a
	m.log.Debug("attachment created", zap.String("id", id.String()), zap.Uint64("capacity", capacity))
	return a, nil
}

// Get returns the attachment for id, if it exists and has not expired.
func (m *Manager) Get(id ID) (*Attachment, Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()

	a, ok := m.byID[id.String()]
	if !ok {
		return nil, StatusNotFound
	}
	return a, StatusOK
}

// Remove deletes id from the manager, closing its attachment regardless
// of whether it is active.
func (m *Manager) Remove(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id.String()]
	if !ok {
		return nil
	}
	err := a.Close()
	delete(m.byID, id.String())
	return err
}

// sweepLocked removes every attachment idle for longer than
// cfg.Expiration, except one that is Active (both a reader and a writer
// are live): an active attachment is only reclaimed once one of its
// handles goes away, never on idle time alone. Callers must hold m.mu.
func (m *Manager) sweepLocked() {
	var errs error
	for key, a := range m.byID {
		if a.Active() || !a.idle(m.cfg.Expiration) {
			continue
		}
		if err := a.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
		delete(m.byID, key)
		m.log.Debug("attachment expired", zap.String("id", key))
	}
	if errs != nil {
		m.log.Warn("errors while expiring attachments", zap.Error(errs))
	}
}

// Run sweeps for expired attachments every cfg.SweepInterval until ctx
// is done. It is optional: callers relying solely on the opportunistic
// sweep in EnsureCreated/Get need not call it.
func (m *Manager) Run(ctx context.Context) error {
	if m.cfg.SweepInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.mu.Lock()
			m.sweepLocked()
			m.mu.Unlock()
		}
	}
}

// Len reports the number of live (non-expired as of the last sweep)
// attachments tracked by the manager.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
