package r2s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestClient_PutSignsRequest(t *testing.T) {
	var (
		gotPath string
		gotBody string
		gotAuth string
		gotType string
		gotHash string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotHash = r.Header.Get("x-amz-content-sha256")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, Bucket: "bucket", AccessKeyID: "AKID", SecretAccessKey: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC) }

	path := filepath.Join(t.TempDir(), "coordinates_20240203_040506.json")
	if err := os.WriteFile(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.PutFile(context.Background(), "coords/backups/coordinates_20240203_040506.json", path); err != nil {
		t.Fatalf("PutFile: %v", err)
	}

	if gotPath != "/bucket/coords/backups/coordinates_20240203_040506.json" {
		t.Fatalf("path=%s", gotPath)
	}
	if gotBody != `{"a":1}` {
		t.Fatalf("body=%q", gotBody)
	}
	if gotType != "application/json" {
		t.Fatalf("content-type=%s", gotType)
	}
	if gotHash != sha256Hex([]byte(`{"a":1}`)) {
		t.Fatalf("payload hash=%s", gotHash)
	}
	wantPrefix := "AWS4-HMAC-SHA256 Credential=AKID/20240203/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature="
	if !strings.HasPrefix(gotAuth, wantPrefix) {
		t.Fatalf("authorization=%s", gotAuth)
	}
}

func TestClient_PutReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()
	c, err := New(Config{Endpoint: srv.URL, Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Put(context.Background(), "k", []byte("x"), "")
	if err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("err=%v want status=403", err)
	}
}

func TestNew_RequiresFields(t *testing.T) {
	if _, err := New(Config{Endpoint: "example.com", Bucket: "b"}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestNormalizeObjectKey(t *testing.T) {
	cases := map[string]string{
		"/a/b.json":    "a/b.json",
		`a\b.json`:     "a/b.json",
		"a/../../b":    "b",
		"  ":           "",
		"/":            "",
		"x/./y//z.zst": "x/y/z.zst",
	}
	for in, want := range cases {
		if got := normalizeObjectKey(in); got != want {
			t.Fatalf("normalizeObjectKey(%q)=%q want %q", in, got, want)
		}
	}
}

type recordingPutter struct {
	mu       sync.Mutex
	failures int
	keys     []string
}

func (p *recordingPutter) PutFile(ctx context.Context, key, localPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("temporary failure")
	}
	p.keys = append(p.keys, key)
	return nil
}

func TestUploader_RetriesAndUploads(t *testing.T) {
	p := &recordingPutter{failures: 2}
	u := NewUploader(p, UploaderOptions{Prefix: "/coords/", Backoff: time.Millisecond})
	u.Enqueuer("backups")(filepath.Join("data", "backups", "coordinates_1.json"))
	u.Close()

	st := u.Stats()
	if st.UploadSuccessTotal != 1 || st.UploadFailTotal != 0 {
		t.Fatalf("stats=%+v", st)
	}
	if len(p.keys) != 1 || p.keys[0] != "coords/backups/coordinates_1.json" {
		t.Fatalf("keys=%v", p.keys)
	}
}

func TestUploader_GivesUp(t *testing.T) {
	p := &recordingPutter{failures: 10}
	u := NewUploader(p, UploaderOptions{MaxAttempts: 2, Backoff: time.Millisecond})
	u.Enqueue("changes", "changes-2024-01-01.jsonl.zst")
	u.Close()
	if st := u.Stats(); st.UploadFailTotal != 1 || st.LastErrorUnix == 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestUploader_DropsWhenSaturated(t *testing.T) {
	u := &Uploader{jobs: make(chan job, 1)}
	u.Enqueue("backups", "a.json")
	u.Enqueue("backups", "b.json")
	st := u.Stats()
	if st.EnqueuedTotal != 2 || st.DroppedTotal != 1 || st.QueueDepth != 1 {
		t.Fatalf("stats=%+v", st)
	}
}
