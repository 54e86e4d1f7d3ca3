package changelog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

func TestChangeLog_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 7, 1, 23, 59, 0, 0, time.UTC)
	var rotated []string
	l := New(dir, Options{
		Now:      func() time.Time { return now },
		OnRotate: func(p string) { rotated = append(rotated, p) },
	})

	first := coords.Change{
		Time:       now,
		Action:     coords.ActionSave,
		Dimension:  coords.Overworld,
		Location:   "Spawn Point",
		Coordinate: &coords.Coordinate{X: 100, Y: 64, Z: -200},
		UserID:     "u1",
	}
	if err := l.WriteChange(first); err != nil {
		t.Fatalf("write: %v", err)
	}

	now = now.Add(2 * time.Minute)
	second := coords.Change{Time: now, Action: coords.ActionClear, Dimension: coords.End, Removed: 3, UserID: "u2"}
	l.RecordChange(second)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(rotated) != 1 || filepath.Base(rotated[0]) != "changes-2024-07-01.jsonl.zst" {
		t.Fatalf("rotated=%v", rotated)
	}
	files, err := Files(dir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2", files)
	}

	var got []coords.Change
	if err := ReadDir(dir, func(c coords.Change) error { got = append(got, c); return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff([]coords.Change{first, second}, got); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestChangeLog_AppendsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC) }
	for i := 0; i < 2; i++ {
		l := New(dir, Options{Now: now})
		if err := l.WriteChange(coords.Change{Action: coords.ActionDelete, Location: "X", UserID: "u"}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
	n := 0
	if err := ReadDir(dir, func(coords.Change) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("changes=%d want 2", n)
	}
}
