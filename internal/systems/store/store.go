package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/notify"
	"github.com/modforge/container/internal/types"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	at     TEXT NOT NULL,
	kind   TEXT NOT NULL,
	module TEXT NOT NULL,
	args   TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_events_module ON events(module);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
`

// Record is one journaled lifecycle event.
type Record struct {
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Module string    `json:"module"`
	Args   []string  `json:"args,omitempty"`
}

type entry struct {
	rec    Record
	synced chan struct{}
}

// Store journals lifecycle events into an embedded sqlite database.
// Writes are asynchronous: the notifier callback only enqueues, a
// single writer goroutine drains the queue, so the lifecycle path is
// never blocked on disk.
type Store struct {
	db    *sql.DB
	log   *logging.Logger
	queue chan entry

	closeOnce sync.Once
	done      chan struct{}
	drained   chan struct{}
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, log *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// The sqlite driver serializes writes itself; one connection
	// avoids table-lock errors under concurrent appends.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	s := &Store{
		db:      db,
		log:     log,
		queue:   make(chan entry, 256),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

// Notifier returns a callback suitable for notify.Bus registration.
// Events arriving after Stop are dropped.
func (s *Store) Notifier() notify.Callback {
	return func(event types.Event, args []string) {
		rec := Record{At: time.Now().UTC(), Kind: string(event)}
		if len(args) > 0 {
			rec.Module = args[0]
			rec.Args = args[1:]
		}
		select {
		case s.queue <- entry{rec: rec}:
		case <-s.done:
		default:
			s.log.Warn("event journal queue full, dropping event",
				zap.String("kind", rec.Kind), zap.String("module", rec.Module))
		}
	}
}

func (s *Store) writer() {
	defer close(s.drained)
	for {
		select {
		case e := <-s.queue:
			s.handle(e)
		case <-s.done:
			for {
				select {
				case e := <-s.queue:
					s.handle(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) handle(e entry) {
	if e.synced != nil {
		close(e.synced)
		return
	}
	args, err := sonic.MarshalString(e.rec.Args)
	if err != nil {
		args = "[]"
	}
	_, err = s.db.Exec(
		"INSERT INTO events (at, kind, module, args) VALUES (?, ?, ?, ?)",
		e.rec.At.Format(time.RFC3339Nano), e.rec.Kind, e.rec.Module, args)
	if err != nil {
		s.log.Error("journal append failed", zap.Error(err))
	}
}

// Recent returns the newest limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	return s.query(ctx,
		"SELECT id, at, kind, module, args FROM events ORDER BY id DESC LIMIT ?", limit)
}

// ByModule returns the newest limit records for one module, newest first.
func (s *Store) ByModule(ctx context.Context, module string, limit int) ([]Record, error) {
	return s.query(ctx,
		"SELECT id, at, kind, module, args FROM events WHERE module = ? ORDER BY id DESC LIMIT ?",
		module, limit)
}

// ByKind returns the newest limit records of one event kind, newest first.
func (s *Store) ByKind(ctx context.Context, kind string, limit int) ([]Record, error) {
	return s.query(ctx,
		"SELECT id, at, kind, module, args FROM events WHERE kind = ? ORDER BY id DESC LIMIT ?",
		kind, limit)
}

func (s *Store) query(ctx context.Context, q string, params ...interface{}) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var at, args string
		if err := rows.Scan(&rec.ID, &at, &rec.Kind, &rec.Module, &args); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		rec.At, _ = time.Parse(time.RFC3339Nano, at)
		if err := sonic.UnmarshalString(args, &rec.Args); err != nil {
			rec.Args = nil
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Sync blocks until every event enqueued before the call is on disk.
func (s *Store) Sync() {
	marker := make(chan struct{})
	select {
	case s.queue <- entry{synced: marker}:
	case <-s.done:
		return
	}
	select {
	case <-marker:
	case <-s.drained:
	}
}

// Stop flushes pending writes and closes the database. Implements
// bootstrap.Stoppable.
func (s *Store) Stop() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.drained
		err = s.db.Close()
	})
	return err
}
