package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/docbench/docbench/lib/logging"
)

var poolLogger = logging.CreateLogger("engine/pool")

// --------------------------------------------------------------------------
// Pool Options
// --------------------------------------------------------------------------

// PoolOptions configures a session pool.
type PoolOptions struct {
	// Capacity is the maximum number of concurrently open sessions.
	Capacity int

	// AcquireTimeout bounds how long Acquire blocks when the pool is
	// exhausted. Zero means block until a session is released.
	AcquireTimeout time.Duration
}

// DefaultPoolOptions returns the default pool options.
func DefaultPoolOptions() *PoolOptions {
	return &PoolOptions{
		Capacity:       64,
		AcquireTimeout: 0,
	}
}

// --------------------------------------------------------------------------
// Session Pool
// --------------------------------------------------------------------------

// Pool is a lazily filled pool of sessions bound to one connection target
// and one credential pair. Sessions are dialed on demand up to Capacity and
// reused afterwards; Acquire blocks while the pool is exhausted.
//
// Thread-safety: all methods may be called concurrently. A session handed
// out by Acquire is exclusively owned by the caller until Release.
type Pool struct {
	url      string
	user     string
	password string
	opts     PoolOptions

	free    chan Database
	created atomic.Int64
	closed  atomic.Bool
}

// NewPool creates a pool for the given target and credentials. No session
// is dialed until the first Acquire.
func NewPool(url, user, password string, opts *PoolOptions) *Pool {
	if opts == nil {
		opts = DefaultPoolOptions()
	}
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}

	return &Pool{
		url:      url,
		user:     user,
		password: password,
		opts:     *opts,
		free:     make(chan Database, opts.Capacity),
	}
}

// URL returns the connection target the pool is bound to.
func (p *Pool) URL() string {
	return p.url
}

// Acquire returns a session for exclusive use by the caller. The session
// must be returned with Session.Release on every exit path.
func (p *Pool) Acquire() (*Session, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	// Fast path: reuse a free session.
	select {
	case db := <-p.free:
		return &Session{Database: db, pool: p}, nil
	default:
	}

	// Dial a new session while below capacity.
	if n := p.created.Add(1); n <= int64(p.opts.Capacity) {
		db, err := p.dial()
		if err != nil {
			p.created.Add(-1)
			return nil, err
		}
		return &Session{Database: db, pool: p}, nil
	}
	p.created.Add(-1)

	// Exhausted: block until a session is released.
	if p.opts.AcquireTimeout > 0 {
		select {
		case db := <-p.free:
			return &Session{Database: db, pool: p}, nil
		case <-time.After(p.opts.AcquireTimeout):
			return nil, fmt.Errorf("engine: pool exhausted, no session released within %s", p.opts.AcquireTimeout)
		}
	}

	db := <-p.free
	return &Session{Database: db, pool: p}, nil
}

// Close closes the pool and every free session. Sessions still lent out
// are closed when they are released.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	for {
		select {
		case db := <-p.free:
			if err := db.Close(); err != nil {
				poolLogger.Warningf("closing pooled session: %v", err)
			}
		default:
			return nil
		}
	}
}

// dial opens a fresh session against the pool's target.
func (p *Pool) dial() (Database, error) {
	db, err := Connect(p.url)
	if err != nil {
		return nil, err
	}
	if err := db.Open(p.user, p.password); err != nil {
		return nil, err
	}
	poolLogger.Debugf("dialed session %d/%d to %s", p.created.Load(), p.opts.Capacity, p.url)
	return db, nil
}

// --------------------------------------------------------------------------
// Pooled Session
// --------------------------------------------------------------------------

// Session is a pooled database session. It embeds the underlying Database;
// all database operations are available directly on the session.
type Session struct {
	Database

	pool     *Pool
	released atomic.Bool
}

// Release returns the session to its pool. Releasing twice is a no-op.
func (s *Session) Release() {
	if s.released.Swap(true) {
		return
	}

	if s.pool.closed.Load() {
		if err := s.Database.Close(); err != nil {
			poolLogger.Warningf("closing session after pool shutdown: %v", err)
		}
		s.pool.created.Add(-1)
		return
	}

	s.pool.free <- s.Database
}
