package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

func TestSQLiteIndex_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	base := time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		idx.RecordChange(coords.Change{
			Time:       base.Add(time.Duration(i) * time.Minute),
			Action:     coords.ActionSave,
			Dimension:  coords.Overworld,
			Location:   fmt.Sprintf("Spot %d", i%2),
			Coordinate: &coords.Coordinate{X: i},
			UserID:     "u1",
		})
	}
	idx.RecordChange(coords.Change{Time: base.Add(time.Hour), Action: coords.ActionClear, Dimension: coords.End, Removed: 2, UserID: "u2"})

	n, err := idx.CountChanges(ctx)
	if err != nil {
		t.Fatalf("CountChanges: %v", err)
	}
	if n != 6 {
		t.Fatalf("count=%d want 6", n)
	}

	recent, err := idx.RecentChanges(ctx, "", 2)
	if err != nil {
		t.Fatalf("RecentChanges: %v", err)
	}
	if len(recent) != 2 || recent[0].Action != coords.ActionClear || recent[1].Coordinate.X != 4 {
		t.Fatalf("recent=%+v", recent)
	}

	spot1, err := idx.RecentChanges(ctx, "Spot 1", 10)
	if err != nil {
		t.Fatalf("RecentChanges(Spot 1): %v", err)
	}
	if len(spot1) != 2 || spot1[0].Coordinate.X != 3 || spot1[1].Coordinate.X != 1 {
		t.Fatalf("spot1=%+v", spot1)
	}
}

func TestSQLiteIndex_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordChange(coords.Change{Time: time.Now(), Action: coords.ActionDelete, Location: "Gone", Dimension: coords.Nether, UserID: "u"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var location string
	var x sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT location, x FROM changes`).Scan(&location, &x); err != nil {
		t.Fatalf("query: %v", err)
	}
	if location != "Gone" || x.Valid {
		t.Fatalf("location=%q x=%v", location, x)
	}
}

func TestSQLiteIndex_Import(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	changes := []coords.Change{
		{Time: time.Now(), Action: coords.ActionSave, Location: "A", Dimension: coords.End, UserID: "u"},
		{Time: time.Now(), Action: coords.ActionSave, Location: "B", Dimension: coords.End, UserID: "u"},
	}
	if err := idx.Import(ctx, changes); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n, _ := idx.CountChanges(ctx); n != 2 {
		t.Fatalf("count=%d want 2", n)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.RecordChange(coords.Change{Location: "a"})
	s.RecordChange(coords.Change{Location: "b"})

	st := s.Stats()
	if st.DropTotal != 1 {
		t.Fatalf("DropTotal=%d want=1", st.DropTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecordDuringClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"), nil)
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		start := make(chan struct{})
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				<-start
				for i := 0; i < 200; i++ {
					idx.RecordChange(coords.Change{Action: coords.ActionSave, Dimension: coords.Overworld, Location: fmt.Sprintf("G%d", g), UserID: "u"})
					_ = idx.Flush(context.Background())
				}
			}(g)
		}
		close(start)
		if err := idx.Close(); err != nil {
			t.Fatalf("round=%d close: %v", round, err)
		}
		wg.Wait()
		// Calls after close are no-ops.
		idx.RecordChange(coords.Change{Action: coords.ActionSave})
		if err := idx.Flush(context.Background()); err != nil {
			t.Fatalf("flush after close: %v", err)
		}
	}
}
