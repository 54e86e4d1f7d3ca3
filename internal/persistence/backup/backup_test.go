package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type staticExporter []byte

func (s staticExporter) Export(ctx context.Context) ([]byte, error) { return s, nil }

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Hour)
	return c.t
}

func TestLatest_NoBackups(t *testing.T) {
	m := New(staticExporter("{}"), Options{Dir: filepath.Join(t.TempDir(), "missing")})
	if _, err := m.Latest(); !errors.Is(err, ErrNoBackups) {
		t.Fatalf("err=%v want ErrNoBackups", err)
	}

	empty := New(staticExporter("{}"), Options{Dir: t.TempDir()})
	if _, err := empty.Latest(); !errors.Is(err, ErrNoBackups) {
		t.Fatalf("empty dir err=%v want ErrNoBackups", err)
	}
}

func TestSnapshot_WritesNamedCopy(t *testing.T) {
	dir := t.TempDir()
	var written []string
	m := New(staticExporter(`{"dimensions":{}}`), Options{
		Dir:     dir,
		Now:     func() time.Time { return time.Date(2024, 3, 9, 8, 7, 6, 0, time.UTC) },
		OnWrite: func(p string) { written = append(written, p) },
	})
	path, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if filepath.Base(path) != "coordinates_20240309_080706.json" {
		t.Fatalf("name=%s", filepath.Base(path))
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{"dimensions":{}}` {
		t.Fatalf("content=%q", got)
	}
	if len(written) != 1 || written[0] != path {
		t.Fatalf("onWrite=%v", written)
	}
	latest, err := m.Latest()
	if err != nil || latest != path {
		t.Fatalf("latest=%q err=%v want %q", latest, err, path)
	}
}

type countingExporter struct{ n int }

func (c *countingExporter) Export(ctx context.Context) ([]byte, error) {
	c.n++
	return []byte(fmt.Sprintf(`{"n":%d}`, c.n)), nil
}

func TestSnapshot_SameSecondKeepsFirst(t *testing.T) {
	dir := t.TempDir()
	var written []string
	m := New(&countingExporter{}, Options{
		Dir:     dir,
		Now:     func() time.Time { return time.Date(2024, 3, 9, 8, 7, 6, 0, time.UTC) },
		OnWrite: func(p string) { written = append(written, p) },
	})
	first, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	second, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if second != first {
		t.Fatalf("second=%q want %q", second, first)
	}
	got, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{"n":1}` {
		t.Fatalf("content=%q want first snapshot", got)
	}
	if len(written) != 1 {
		t.Fatalf("onWrite calls=%d want 1", len(written))
	}
	all, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("files=%d want 1: %v", len(all), all)
	}
}

func TestSnapshot_PrunesOldest(t *testing.T) {
	dir := t.TempDir()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := New(staticExporter("{}"), Options{Dir: dir, Keep: 3, Now: c.now})
	for i := 0; i < 5; i++ {
		if _, err := m.Snapshot(context.Background()); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}
	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	all, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("kept=%d want 3: %v", len(all), all)
	}
	if filepath.Base(all[0]) != "coordinates_20240101_030000.json" {
		t.Fatalf("oldest kept=%s", filepath.Base(all[0]))
	}
}

func TestParseFileName(t *testing.T) {
	ts, ok := ParseFileName("/x/coordinates_20240309_080706.json")
	if !ok || !ts.Equal(time.Date(2024, 3, 9, 8, 7, 6, 0, time.UTC)) {
		t.Fatalf("parse=%v ok=%v", ts, ok)
	}
	for _, bad := range []string{"coordinates.json", "coordinates_2024.json", "coordinates_20240309_080706.json.tmp"} {
		if _, ok := ParseFileName(bad); ok {
			t.Fatalf("accepted %q", bad)
		}
	}
}
