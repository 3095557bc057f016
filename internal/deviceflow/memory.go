package deviceflow

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often a MemoryStore drops expired states
const DefaultSweepInterval = 60 * time.Second

// MemoryStore is a process-local Store with a background expiry sweep
type MemoryStore struct {
	mu       sync.RWMutex
	byDevice map[string]*State
	byUser   map[string]*State

	now      func() time.Time
	interval time.Duration
	logger   zerolog.Logger
	onSweep  func(removed int)

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithSweepInterval sets how often expired states are dropped
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithStoreClock overrides the time source used for expiry checks
func WithStoreClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// WithStoreLogger sets the logger used by the sweep
func WithStoreLogger(logger zerolog.Logger) MemoryOption {
	return func(s *MemoryStore) {
		s.logger = logger
	}
}

// WithSweepHook registers a callback invoked after each sweep with the number of states removed
func WithSweepHook(fn func(removed int)) MemoryOption {
	return func(s *MemoryStore) {
		s.onSweep = fn
	}
}

// NewMemoryStore creates a MemoryStore and starts its sweep. Close must be
// called to stop it.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byDevice: make(map[string]*State),
		byUser:   make(map[string]*State),
		now:      time.Now,
		interval: DefaultSweepInterval,
		logger:   zerolog.Nop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
	return s
}

func (s *MemoryStore) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.Sweep()
			if n > 0 {
				s.logger.Debug().Int("removed", n).Msg("swept expired device codes")
			}
			if s.onSweep != nil {
				s.onSweep(n)
			}
		}
	}
}

// Sweep removes every expired state and returns how many were dropped
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, st := range s.byDevice {
		if st.Expired(now) {
			s.unlink(st)
			delete(s.byDevice, code)
			removed++
		}
	}
	return removed
}

// Len returns the number of states held, including expired ones not yet swept
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byDevice)
}

// Add implements Store
func (s *MemoryStore) Add(ctx context.Context, state *State) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.byDevice[state.DeviceCode]; ok {
		if !cur.Expired(now) {
			return ErrCodeCollision
		}
		s.drop(cur)
	}
	if cur, ok := s.byUser[state.UserCode]; ok {
		if !cur.Expired(now) {
			return ErrCodeCollision
		}
		s.drop(cur)
	}

	st := state.clone()
	s.byDevice[st.DeviceCode] = st
	s.byUser[st.UserCode] = st
	return nil
}

// Remove implements Store
func (s *MemoryStore) Remove(ctx context.Context, state *State) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byDevice[state.DeviceCode]
	if !ok || cur.UserCode != state.UserCode {
		return false, nil
	}
	s.drop(cur)
	return true, nil
}

// GetByDeviceCode implements Store
func (s *MemoryStore) GetByDeviceCode(ctx context.Context, deviceCode string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live(s.byDevice[deviceCode]), nil
}

// GetByUserCode implements Store
func (s *MemoryStore) GetByUserCode(ctx context.Context, userCode string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live(s.byUser[userCode]), nil
}

// Resolve implements Store
func (s *MemoryStore) Resolve(ctx context.Context, userCode string, res *Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.byUser[userCode]
	if !ok || st.Expired(s.now()) {
		return ErrInvalidUserCode
	}
	if st.Resolution != nil {
		return ErrAlreadyResolved
	}
	r := *res
	st.Resolution = &r
	return nil
}

// CheckHealth implements Store
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrStoreUnhealthy
	default:
		return nil
	}
}

// Close stops the sweep and waits for it to exit. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *MemoryStore) live(st *State) *State {
	if st == nil || st.Expired(s.now()) {
		return nil
	}
	return st.clone()
}

// drop removes st from both indices; callers hold the write lock
func (s *MemoryStore) drop(st *State) {
	if cur, ok := s.byDevice[st.DeviceCode]; ok && cur == st {
		delete(s.byDevice, st.DeviceCode)
	}
	s.unlink(st)
}

func (s *MemoryStore) unlink(st *State) {
	if cur, ok := s.byUser[st.UserCode]; ok && cur == st {
		delete(s.byUser, st.UserCode)
	}
}
