package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

const defaultQueueSize = 4096

// SQLiteIndex keeps a queryable history of registry changes. Writes are
// queued and applied by a single writer goroutine; the zstd change log
// stays the source of truth when the queue overflows.
type SQLiteIndex struct {
	db     *sql.DB
	logger *log.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and every send on ch.
	mu     sync.RWMutex
	closed bool

	dropTotal      atomic.Uint64
	writeFailTotal atomic.Uint64
}

type reqKind int

const (
	reqChange reqKind = iota + 1
	reqFlush
)

type req struct {
	kind   reqKind
	change coords.Change
	done   chan struct{}
}

type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropTotal      uint64
	WriteFailTotal uint64
}

func OpenSQLite(path string, logger *log.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:     db,
		logger: logger,
		ch:     make(chan req, defaultQueueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			action TEXT NOT NULL,
			dimension TEXT NOT NULL,
			location TEXT NOT NULL,
			user_id TEXT NOT NULL,
			user_name TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			x INTEGER,
			y INTEGER,
			z INTEGER,
			removed INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_changes_location ON changes(location, id);`,
		`CREATE INDEX IF NOT EXISTS idx_changes_user ON changes(user_id, id);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordChange queues c without blocking. Changes are dropped when the
// queue is full.
func (s *SQLiteIndex) RecordChange(c coords.Change) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- req{kind: reqChange, change: c}:
	default:
		s.dropTotal.Add(1)
	}
}

// Flush waits until every change queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTotal:      s.dropTotal.Load(),
		WriteFailTotal: s.writeFailTotal.Load(),
	}
}

// Import inserts changes synchronously in one transaction, for rebuilding
// the index from the change log.
func (s *SQLiteIndex) Import(ctx context.Context, changes []coords.Change) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, insertChangeSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range changes {
		if err := execInsert(ctx, stmt, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentChanges returns up to limit changes, newest first. An empty
// location matches every change.
func (s *SQLiteIndex) RecentChanges(ctx context.Context, location string, limit int) ([]coords.Change, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	var rows *sql.Rows
	var err error
	if location == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT raw_json FROM changes ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT raw_json FROM changes WHERE location = ? ORDER BY id DESC LIMIT ?`, location, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coords.Change
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var c coords.Change
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) CountChanges(ctx context.Context) (int, error) {
	if err := s.Flush(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM changes`).Scan(&n)
	return n, err
}

const insertChangeSQL = `INSERT INTO changes(at,action,dimension,location,user_id,user_name,channel_id,x,y,z,removed,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`

func execInsert(ctx context.Context, stmt *sql.Stmt, c coords.Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	var x, y, z sql.NullInt64
	if c.Coordinate != nil {
		x = sql.NullInt64{Int64: int64(c.Coordinate.X), Valid: true}
		y = sql.NullInt64{Int64: int64(c.Coordinate.Y), Valid: true}
		z = sql.NullInt64{Int64: int64(c.Coordinate.Z), Valid: true}
	}
	_, err = stmt.ExecContext(ctx,
		c.Time.UTC().Format("2006-01-02T15:04:05.000000Z"),
		string(c.Action),
		string(c.Dimension),
		c.Location,
		c.UserID,
		c.UserName,
		c.ChannelID,
		x, y, z,
		c.Removed,
		string(raw),
	)
	return err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	insert, err := s.db.Prepare(insertChangeSQL)
	if err != nil {
		s.logf("indexdb prepare failed err=%v", err)
	}
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	var tx *sql.Tx
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFailTotal.Add(1)
			s.logf("indexdb commit failed err=%v", err)
		}
		tx = nil
	}

	for r := range s.ch {
		switch r.kind {
		case reqFlush:
			commit()
			close(r.done)
			continue
		case reqChange:
			if insert == nil {
				s.writeFailTotal.Add(1)
				continue
			}
			if tx == nil {
				txx, err := s.db.BeginTx(ctx, nil)
				if err != nil {
					s.writeFailTotal.Add(1)
					s.logf("indexdb begin failed err=%v", err)
					continue
				}
				tx = txx
			}
			if err := execInsert(ctx, tx.Stmt(insert), r.change); err != nil {
				s.writeFailTotal.Add(1)
				s.logf("indexdb insert failed action=%s location=%q err=%v", r.change.Action, r.change.Location, err)
				_ = tx.Rollback()
				tx = nil
				continue
			}
		}
		// Batch while more work is queued, commit once idle.
		if len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

func (s *SQLiteIndex) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
