package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

// memPG is an in-memory database/sql driver that understands the three
// statements PostgresBackend issues.
type memPG struct {
	mu        sync.Mutex
	rows      map[string]string
	creates   int
	createErr error
}

func newMemPG() *memPG { return &memPG{rows: map[string]string{}} }

func (m *memPG) Connect(context.Context) (driver.Conn, error) { return &memPGConn{db: m}, nil }
func (m *memPG) Driver() driver.Driver                        { return memPGDriver{m} }

type memPGDriver struct{ db *memPG }

func (d memPGDriver) Open(string) (driver.Conn, error) { return &memPGConn{db: d.db}, nil }

type memPGConn struct{ db *memPG }

func (c *memPGConn) Prepare(query string) (driver.Stmt, error) {
	return &memPGStmt{db: c.db, query: query}, nil
}

func (c *memPGConn) Close() error { return nil }

func (c *memPGConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

type memPGStmt struct {
	db    *memPG
	query string
}

func (s *memPGStmt) Close() error  { return nil }
func (s *memPGStmt) NumInput() int { return -1 }

func (s *memPGStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	switch {
	case strings.Contains(s.query, `CREATE TABLE IF NOT EXISTS "coords_state"`):
		s.db.creates++
		if s.db.createErr != nil {
			return nil, s.db.createErr
		}
	case strings.Contains(s.query, `INSERT INTO "coords_state"`) && strings.Contains(s.query, "ON CONFLICT (state_key)"):
		s.db.rows[args[0].(string)] = args[1].(string)
	default:
		return nil, errors.New("unexpected exec: " + s.query)
	}
	return driver.RowsAffected(1), nil
}

func (s *memPGStmt) Query(args []driver.Value) (driver.Rows, error) {
	if !strings.Contains(s.query, `SELECT document FROM "coords_state" WHERE state_key = $1`) {
		return nil, errors.New("unexpected query: " + s.query)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	doc, ok := s.db.rows[args[0].(string)]
	if !ok {
		return &memPGRows{}, nil
	}
	return &memPGRows{docs: []string{doc}}, nil
}

type memPGRows struct{ docs []string }

func (r *memPGRows) Columns() []string { return []string{"document"} }
func (r *memPGRows) Close() error      { return nil }

func (r *memPGRows) Next(dest []driver.Value) error {
	if len(r.docs) == 0 {
		return io.EOF
	}
	dest[0] = r.docs[0]
	r.docs = r.docs[1:]
	return nil
}

func newMemPGBackend(t *testing.T, db *memPG) *PostgresBackend {
	t.Helper()
	b, err := NewPostgresBackend("postgres://coords@localhost/coords?sslmode=disable")
	if err != nil {
		t.Fatalf("NewPostgresBackend: %v", err)
	}
	b.openDB = func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "postgres" {
			t.Fatalf("driver=%q want postgres", driverName)
		}
		return sql.OpenDB(db), nil
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPostgresBackend_LoadEmptyGivesNil(t *testing.T) {
	db := newMemPG()
	b := newMemPGBackend(t, db)
	data, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if data != nil {
		t.Fatalf("data=%q want nil", data)
	}
	if db.creates != 1 {
		t.Fatalf("creates=%d want 1", db.creates)
	}
}

func TestPostgresBackend_SaveUpsertsSingleRow(t *testing.T) {
	ctx := context.Background()
	db := newMemPG()
	b := newMemPGBackend(t, db)
	for _, doc := range []string{`{"v":1}`, `{"v":2}`} {
		if err := b.Save(ctx, []byte(doc)); err != nil {
			t.Fatalf("save %s: %v", doc, err)
		}
	}
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Fatalf("doc=%q want latest save", got)
	}
	if diff := cmp.Diff(map[string]string{"default": `{"v":2}`}, db.rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if db.creates != 1 {
		t.Fatalf("creates=%d want 1", db.creates)
	}
}

func TestPostgresBackend_StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(newMemPGBackend(t, newMemPG()), Options{Now: fixedNow})
	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := doc.Upsert(coords.Overworld, "spawn", coords.Coordinate{X: 1, Y: 64, Z: -3}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(doc, again, cmp.AllowUnexported(coords.Locations{})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPostgresBackend_InitErrors(t *testing.T) {
	ctx := context.Background()

	openFail := newMemPGBackend(t, newMemPG())
	openErr := errors.New("dial refused")
	openFail.openDB = func(string, string) (*sql.DB, error) { return nil, openErr }
	if _, err := openFail.Load(ctx); !errors.Is(err, openErr) {
		t.Fatalf("load err=%v want %v", err, openErr)
	}
	// The init error sticks for later calls.
	if err := openFail.Save(ctx, []byte("{}")); !errors.Is(err, openErr) {
		t.Fatalf("save err=%v want %v", err, openErr)
	}

	db := newMemPG()
	db.createErr = errors.New("permission denied")
	createFail := newMemPGBackend(t, db)
	_, err := createFail.Load(ctx)
	if !errors.Is(err, db.createErr) || !strings.Contains(err.Error(), "create coords_state") {
		t.Fatalf("load err=%v want wrapped create error", err)
	}
	if createFail.db != nil {
		t.Fatalf("db kept after failed create")
	}
}
