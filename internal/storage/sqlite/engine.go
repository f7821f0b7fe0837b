// Package sqlite provides the in-memory SQLite storage engine.
//
// The whole database lives in process memory. Durability comes from
// checkpoints: after each committed write the engine asks its checkpointer to
// serialize the database and replace the snapshot file, debounced and
// single-flight. On startup the snapshot file is restored into memory with the
// driver's backup API.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/jwulff/gridboard/internal/storage"
	"github.com/jwulff/gridboard/internal/storage/checkpoint"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("storage engine is closed")

// Options configures Open.
type Options struct {
	// Path is the snapshot file. Empty means memory only with no checkpoints.
	Path string
	// ReadOnly loads Path, which must exist, without migrating it and never
	// writes it back.
	ReadOnly bool
	// Sink overrides the file sink derived from Path.
	Sink               checkpoint.Sink
	CheckpointDebounce time.Duration
	Clock              quartz.Clock
	Logger             logrus.FieldLogger
	Registerer         prometheus.Registerer
}

// Engine owns the single in-memory database instance.
type Engine struct {
	mu      sync.RWMutex
	db      *sql.DB
	closing bool
	closed  bool

	clock quartz.Clock
	log   logrus.FieldLogger
	cp    *checkpoint.Checkpointer
}

// NewMemoryEngine opens an engine that never checkpoints.
func NewMemoryEngine(ctx context.Context) (*Engine, error) {
	return Open(ctx, Options{})
}

// Open loads the snapshot at opts.Path if there is one, migrates it forward
// (or provisions a fresh database) and writes an initial checkpoint so the
// file matches memory before any traffic is served. A ReadOnly engine skips
// both the migration and the checkpoint.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database, so pin to one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	e := &Engine{
		db:    db,
		clock: opts.Clock,
		log:   opts.Logger.WithField("component", "storage"),
	}

	if opts.Path != "" {
		info, err := os.Stat(opts.Path)
		switch {
		case errors.Is(err, os.ErrNotExist) && opts.ReadOnly:
			db.Close()
			return nil, fmt.Errorf("snapshot not found: %s", opts.Path)
		case errors.Is(err, os.ErrNotExist):
			e.log.WithField("path", opts.Path).Info("no snapshot found, starting fresh")
		case err != nil:
			db.Close()
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		default:
			if err := e.load(ctx, opts.Path); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to load snapshot: %w", err)
			}
			e.log.WithFields(logrus.Fields{"path": opts.Path, "bytes": info.Size()}).Info("snapshot loaded")
		}
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// A read-only engine shows the snapshot as it is on disk.
	if !opts.ReadOnly {
		from, err := migrate(ctx, db, e.clock.Now().UTC())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		if from != currentSchemaVersion {
			e.log.WithFields(logrus.Fields{"from": from, "to": currentSchemaVersion}).Info("schema migrated")
		}
	}

	sink := opts.Sink
	if sink == nil && opts.Path != "" && !opts.ReadOnly {
		sink = checkpoint.FileSink{Path: opts.Path}
	}
	if sink != nil {
		e.cp = checkpoint.New(e.Snapshot, sink, checkpoint.Options{
			Window:  opts.CheckpointDebounce,
			Clock:   opts.Clock,
			Logger:  opts.Logger,
			Metrics: checkpoint.NewMetrics(opts.Registerer),
		})
		if err := e.cp.Flush(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("initial checkpoint: %w", err)
		}
	}

	return e, nil
}

// Now returns the engine clock's current time in UTC.
func (e *Engine) Now() time.Time {
	return e.clock.Now().UTC()
}

// View runs fn against the database without a transaction.
func (e *Engine) View(ctx context.Context, fn func(q storage.Querier) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closing || e.closed {
		return ErrClosed
	}
	return fn(e.db)
}

// Update runs fn in a transaction. Nothing fn wrote survives an error. A
// checkpoint is requested after a successful commit.
func (e *Engine) Update(ctx context.Context, fn func(q storage.Querier) error) error {
	if err := e.update(ctx, fn); err != nil {
		return err
	}
	e.RequestCheckpoint()
	return nil
}

func (e *Engine) update(ctx context.Context, fn func(q storage.Querier) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closing || e.closed {
		return ErrClosed
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Exec runs a single mutation.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := e.Update(ctx, func(q storage.Querier) error {
		var err error
		res, err = q.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// Query runs a read and returns its rows as records.
func (e *Engine) Query(ctx context.Context, query string, args ...any) ([]storage.Record, error) {
	var records []storage.Record
	err := e.View(ctx, func(q storage.Querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		records, err = storage.ScanRecords(rows)
		return err
	})
	return records, err
}

// RequestCheckpoint schedules a debounced checkpoint. It never blocks on I/O.
func (e *Engine) RequestCheckpoint() {
	if e.cp != nil {
		e.cp.Request()
	}
}

// FlushSync cancels any scheduled checkpoint and writes the current state
// now. Used on shutdown.
func (e *Engine) FlushSync(ctx context.Context) error {
	if e.cp == nil {
		return nil
	}
	return e.cp.Flush(ctx)
}

// Close stops checkpointing, performs a final flush and releases the
// database. It is safe to call more than once.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closing || e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closing = true
	e.mu.Unlock()

	var flushErr error
	if e.cp != nil {
		flushErr = e.cp.Close(ctx)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return errors.Join(flushErr, e.db.Close())
}
