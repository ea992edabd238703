package adapter

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/docbench/docbench/lib/engine"
)

// schemaClass is the collection every benchmark record is tagged with. It
// must exist before any operation is valid.
const schemaClass = "usertable"

// --------------------------------------------------------------------------
// Pool Singleton Slot
// --------------------------------------------------------------------------

// poolSlot holds zero or one pool instance. The pool is installed exactly
// once via compare-and-set and read without further synchronization
// afterwards.
type poolSlot struct {
	p atomic.Pointer[engine.Pool]
}

func (s *poolSlot) get() *engine.Pool {
	return s.p.Load()
}

// shutdown uninstalls and closes the pool held by the slot. Closing the
// pool closes every session, which lets embedded engines flush their
// state to disk. A later bootstrap may install a fresh pool.
func (s *poolSlot) shutdown() {
	if pool := s.p.Swap(nil); pool != nil {
		if err := pool.Close(); err != nil {
			logger.Warningf("closing connection pool: %v", err)
		}
	}
}

// processSlot is the process-wide singleton slot shared by every binding
// created with New. The pool it holds outlives individual workers;
// per-worker Cleanup never touches it.
var processSlot poolSlot

// Shutdown closes the process-wide pool once the whole workload is done.
// Per-worker Cleanup stays a no-op because the pool is shared; the
// workload driver calls Shutdown exactly once after the last worker
// finished, so embedded databases persist before the process exits.
func Shutdown() {
	processSlot.shutdown()
}

// --------------------------------------------------------------------------
// Bootstrap Protocol
// --------------------------------------------------------------------------

// bootstrap brings the target database to "exists, open-able, schema class
// present" and installs the pool singleton. It is safe to run from many
// workers concurrently against the same target.
//
// Failure semantics are deliberately fail-open: any non-race error is
// logged and swallowed, leaving the slot empty so that every subsequent
// operation fails fast with RetCPoolUninitialized instead of crashing the
// harness at startup.
func bootstrap(cfg Config, slot *poolSlot) {
	logger.Infof("loading database url = %s", cfg.URL)

	if err := ensureDatabase(cfg); err != nil {
		logger.Errorf("could not initialize connection pool: %v", err)
		return
	}

	installPool(cfg, slot)
}

// ensureDatabase runs the one-time creation protocol over a transient
// session: fresh-drop, race-tolerant create, schema retry loop.
func ensureDatabase(cfg Config) error {
	db, err := engine.Connect(cfg.URL)
	if err != nil {
		return err
	}
	defer func() {
		if !db.IsClosed() {
			db.Close()
		}
	}()

	if cfg.FreshDatabase {
		exists, err := db.Exists()
		if err != nil {
			return err
		}
		if exists {
			if err := db.Open(cfg.User, cfg.Password); err != nil {
				return err
			}
			logger.Infof("dropping and recreating fresh database")
			if err := db.Drop(); err != nil && !errors.Is(err, engine.ErrDatabaseNotFound) {
				// Not-found means a concurrent worker dropped it first.
				return err
			}
		}
	}

	exists, err := db.Exists()
	if err != nil {
		return err
	}
	if !exists {
		if err := db.Create(); err != nil {
			if !errors.Is(err, engine.ErrStorageExists) {
				return err
			}
			logger.Infof("storage was created by a concurrent worker")
		}
	}

	// Schema retry loop: a concurrent worker may be mid-creation of the
	// class; back off and re-check until it commits or the ceiling is hit.
	attempts := 0
	for {
		attempts++

		if db.IsClosed() {
			if err := db.Open(cfg.User, cfg.Password); err != nil {
				return err
			}
		}

		exists, err := db.ExistsClass(schemaClass)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		err = db.CreateClass(schemaClass)
		if err == nil {
			return nil
		}
		if !errors.Is(err, engine.ErrSchemaNotCommitted) {
			return err
		}

		if !db.IsClosed() {
			if err := db.Close(); err != nil {
				return err
			}
		}
		if cfg.BootstrapMaxRetries > 0 && attempts >= cfg.BootstrapMaxRetries {
			return fmt.Errorf("schema class %q not committed after %d attempts", schemaClass, attempts)
		}

		logger.Debugf("schema class %q not committed yet, retrying in %s", schemaClass, cfg.BootstrapBackoff)
		time.Sleep(cfg.BootstrapBackoff)
	}
}

// installPool installs the shared pool singleton. Only the first caller to
// win the compare-and-set creates the pool; every other caller discards
// its own instance and observes the winner's.
func installPool(cfg Config, slot *poolSlot) {
	if slot.get() != nil {
		return
	}

	pool := engine.NewPool(cfg.URL, cfg.User, cfg.Password, &engine.PoolOptions{
		Capacity: cfg.PoolCapacity,
	})
	if !slot.p.CompareAndSwap(nil, pool) {
		// Lost the install race; the discarded pool never dialed a session.
		pool.Close()
	}
}
