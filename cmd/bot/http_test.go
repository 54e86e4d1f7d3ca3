package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jcvilalta/MineDeezCoords/internal/commands"
	"github.com/jcvilalta/MineDeezCoords/internal/config"
	"github.com/jcvilalta/MineDeezCoords/internal/coords"
	"github.com/jcvilalta/MineDeezCoords/internal/dialog"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/backup"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/store"
	"github.com/jcvilalta/MineDeezCoords/internal/transport/observer"
)

func testMux(t *testing.T) (*http.ServeMux, *commands.Env, *backup.Manager) {
	t.Helper()
	st := store.New(store.NewMemoryBackend(), store.Options{})
	_, err := st.Update(context.Background(), func(doc *coords.Document) error {
		_, err := doc.Upsert(coords.Nether, "fortress", coords.Coordinate{X: 1, Y: 2, Z: 3})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	env := &commands.Env{Store: st, Dialogs: dialog.NewManager(0), Metrics: commands.NewMetrics()}
	backups := backup.New(st, backup.Options{Dir: t.TempDir()})
	cfg := config.Defaults()
	return newMux(cfg, env, backups, nil, nil, observer.NewServer(nil)), env, backups
}

func TestMetrics(t *testing.T) {
	mux, env, _ := testMux(t)
	env.Metrics.ObserveCommand("save-coordinate", "")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`coords_commands_total{command="save-coordinate",code="ok"} 1`,
		`coords_locations{dimension="nether"} 1`,
		`coords_locations{dimension="overworld"} 0`,
		"coords_dialogs_pending 0",
		"coords_backups 0",
		"coords_observer_subscribers 0",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "coords_r2_upload") || strings.Contains(body, "coords_index_") {
		t.Fatalf("disabled components exported:\n%s", body)
	}
}

func TestAdminBackup(t *testing.T) {
	mux, _, backups := testMux(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/backup", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := backup.ParseFileName(resp["file"]); !ok {
		t.Fatalf("file=%q", resp["file"])
	}
	if files, _ := backups.List(); len(files) != 1 {
		t.Fatalf("backups=%v", files)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/v1/backup", nil)
	req.RemoteAddr = "192.168.1.10:4000"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d want 403", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	mux, _, _ := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}
