package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/commands"
	"github.com/jcvilalta/MineDeezCoords/internal/config"
	"github.com/jcvilalta/MineDeezCoords/internal/coords"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/backup"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/indexdb"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/r2s3"
	"github.com/jcvilalta/MineDeezCoords/internal/transport/observer"
)

func newMux(cfg config.Config, env *commands.Env, backups *backup.Manager, idx *indexdb.SQLiteIndex, up *r2s3.Uploader, feed *observer.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		env.Metrics.WritePrometheus(rw)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if doc, err := env.Store.Load(ctx); err == nil {
			fmt.Fprintf(rw, "# HELP coords_locations Saved locations per dimension.\n")
			fmt.Fprintf(rw, "# TYPE coords_locations gauge\n")
			for _, d := range coords.AllDimensions() {
				fmt.Fprintf(rw, "coords_locations{dimension=%q} %d\n", d, doc.Count(d))
			}
			fmt.Fprintf(rw, "# HELP coords_mirrors Channels with a tracked summary message.\n")
			fmt.Fprintf(rw, "# TYPE coords_mirrors gauge\n")
			fmt.Fprintf(rw, "coords_mirrors %d\n", len(doc.Messages))
		}

		if env.Dialogs != nil {
			fmt.Fprintf(rw, "# HELP coords_dialogs_pending Delete confirmations waiting for an answer.\n")
			fmt.Fprintf(rw, "# TYPE coords_dialogs_pending gauge\n")
			fmt.Fprintf(rw, "coords_dialogs_pending %d\n", env.Dialogs.Pending())
		}

		if backups != nil {
			files, _ := backups.List()
			fmt.Fprintf(rw, "# HELP coords_backups Backup files on disk.\n")
			fmt.Fprintf(rw, "# TYPE coords_backups gauge\n")
			fmt.Fprintf(rw, "coords_backups %d\n", len(files))
		}

		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP coords_index_queue_depth Pending change index writes.\n")
			fmt.Fprintf(rw, "# TYPE coords_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "coords_index_queue_depth %d\n", s.QueueDepth)
			fmt.Fprintf(rw, "# HELP coords_index_queue_capacity Change index queue capacity.\n")
			fmt.Fprintf(rw, "# TYPE coords_index_queue_capacity gauge\n")
			fmt.Fprintf(rw, "coords_index_queue_capacity %d\n", s.QueueCapacity)
			fmt.Fprintf(rw, "# HELP coords_index_drop_total Change index writes dropped.\n")
			fmt.Fprintf(rw, "# TYPE coords_index_drop_total counter\n")
			fmt.Fprintf(rw, "coords_index_drop_total %d\n", s.DropTotal)
			fmt.Fprintf(rw, "# HELP coords_index_write_fail_total Change index writes that failed.\n")
			fmt.Fprintf(rw, "# TYPE coords_index_write_fail_total counter\n")
			fmt.Fprintf(rw, "coords_index_write_fail_total %d\n", s.WriteFailTotal)
		}

		if up != nil {
			s := up.Stats()
			fmt.Fprintf(rw, "# HELP coords_r2_upload_queue_depth Pending backup uploads.\n")
			fmt.Fprintf(rw, "# TYPE coords_r2_upload_queue_depth gauge\n")
			fmt.Fprintf(rw, "coords_r2_upload_queue_depth %d\n", s.QueueDepth)
			fmt.Fprintf(rw, "# HELP coords_r2_upload_total Finished uploads, by result.\n")
			fmt.Fprintf(rw, "# TYPE coords_r2_upload_total counter\n")
			fmt.Fprintf(rw, "coords_r2_upload_total{result=%q} %d\n", "ok", s.UploadSuccessTotal)
			fmt.Fprintf(rw, "coords_r2_upload_total{result=%q} %d\n", "fail", s.UploadFailTotal)
			fmt.Fprintf(rw, "coords_r2_upload_total{result=%q} %d\n", "dropped", s.DroppedTotal)
			fmt.Fprintf(rw, "# HELP coords_r2_upload_last_success_unix Time of the last successful upload.\n")
			fmt.Fprintf(rw, "# TYPE coords_r2_upload_last_success_unix gauge\n")
			fmt.Fprintf(rw, "coords_r2_upload_last_success_unix %d\n", s.LastSuccessUnix)
		}

		if cfg.HTTP.Observer {
			s := feed.Stats()
			fmt.Fprintf(rw, "# HELP coords_observer_subscribers Connected observer feed clients.\n")
			fmt.Fprintf(rw, "# TYPE coords_observer_subscribers gauge\n")
			fmt.Fprintf(rw, "coords_observer_subscribers %d\n", s.Subscribers)
		}
	})

	if cfg.HTTP.Observer {
		mux.HandleFunc("/observer/latest", feed.LatestHandler())
		mux.HandleFunc("/observer/ws", feed.WSHandler())
	}

	mux.HandleFunc("/admin/v1/backup", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopback(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if backups == nil {
			http.Error(rw, "backups disabled", http.StatusConflict)
			return
		}
		path, err := backups.Snapshot(r.Context())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]string{"file": filepath.Base(path)})
	})
	mux.HandleFunc("/admin/v1/resync", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopback(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		outcomes, err := commands.ResyncMirrors(r.Context(), env)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		resp := make(map[string]string, len(outcomes))
		for channelID, out := range outcomes {
			resp[channelID] = out.Kind.String()
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	})
	return mux
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
