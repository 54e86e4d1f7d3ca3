package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/commands"
	"github.com/jcvilalta/MineDeezCoords/internal/config"
	"github.com/jcvilalta/MineDeezCoords/internal/dialog"
	"github.com/jcvilalta/MineDeezCoords/internal/discord"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/backup"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/changelog"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/indexdb"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/store"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/watch"
	"github.com/jcvilalta/MineDeezCoords/internal/transport/observer"
)

func main() {
	configPath := flag.String("config", "", "path to bot.yaml (optional)")
	dataDir := flag.String("data", "", "runtime data directory (overrides data_dir)")
	addr := flag.String("addr", "", "http listen address for /healthz and /metrics (overrides http.addr)")
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *dataDir != "" {
			c.DataDir = *dataDir
		}
		if *addr != "" {
			c.HTTP.Addr = *addr
		}
	})
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	backend, err := store.BuildBackendFromDSN(cfg.StateDSN)
	if err != nil {
		logger.Fatalf("state backend: %v", err)
	}
	st := store.New(backend, store.Options{Logger: logger})
	defer st.Close()
	if _, err := st.Load(ctx); err != nil {
		logger.Fatalf("load state: %v", err)
	}

	up, err := buildUploader(cfg.R2, logger)
	if err != nil {
		logger.Fatalf("r2 upload: %v", err)
	}
	defer up.Close()

	metrics := commands.NewMetrics()
	feed := observer.NewServer(logger)
	env := &commands.Env{
		Store:   st,
		Dialogs: dialog.NewManager(cfg.DialogTimeout),
		OwnerID: cfg.Discord.OwnerID,
		Logger:  logger,
		Metrics: metrics,
	}
	if cfg.HTTP.Observer {
		env.Feed = feed
	}

	var recorders commands.ChangeRecorders
	if cfg.ChangeLog.Enabled {
		cl := changelog.New(cfg.ChangeLog.Dir, changelog.Options{
			Logger:   logger,
			OnRotate: up.Enqueuer("changes"),
		})
		defer cl.Close()
		recorders = append(recorders, cl)
	}
	var idx *indexdb.SQLiteIndex
	if cfg.Index.Enabled {
		idx, err = indexdb.OpenSQLite(cfg.Index.Path, logger)
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		recorders = append(recorders, idx)
		env.History = idx
	}
	if len(recorders) > 0 {
		env.Changes = recorders
	}

	var backups *backup.Manager
	if cfg.Backup.Enabled {
		backups = backup.New(st, backup.Options{
			Dir:     cfg.Backup.Dir,
			Keep:    cfg.Backup.Keep,
			Logger:  logger,
			OnWrite: up.Enqueuer("backups"),
		})
		env.Backups = backups
		go backups.Run(ctx, cfg.Backup.Interval)
	}

	table := commands.Builtin()
	gw, err := discord.New(discord.Options{
		Token:   cfg.Discord.Token,
		AppID:   cfg.Discord.AppID,
		GuildID: cfg.Discord.GuildID,
		Logger:  logger,
	}, table)
	if err != nil {
		logger.Fatalf("discord: %v", err)
	}
	env.Channel = discord.NewChannel(gw.Session())
	env.Syncer = gw

	if path := cfg.StatePath(); cfg.Watch.Enabled && path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.Fatalf("state dir: %v", err)
		}
		go func() {
			err := watch.File(ctx, path, watch.Options{Debounce: cfg.Watch.Debounce, Logger: logger}, func(ctx context.Context) {
				onStateFileChanged(ctx, env)
			})
			if err != nil {
				logger.Printf("watch disabled path=%s err=%v", path, err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newMux(cfg, env, backups, idx, up, feed),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()
	go func() {
		logger.Printf("listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http server stopped err=%v", err)
		}
	}()

	logger.Printf("starting state=%s backups=%t changelog=%t index=%t r2=%t",
		cfg.StateDSN, cfg.Backup.Enabled, cfg.ChangeLog.Enabled, cfg.Index.Enabled, cfg.R2.Enabled)
	if err := gw.Run(ctx, env); err != nil {
		logger.Printf("gateway stopped err=%v", err)
	}
	logger.Printf("shutdown")
}

// onStateFileChanged re-renders every mirror when someone else edited the
// state file.
func onStateFileChanged(ctx context.Context, env *commands.Env) {
	changed, err := env.Store.ExternallyModified(ctx)
	if err != nil {
		env.Logger.Printf("watch check failed err=%v", err)
		return
	}
	if !changed {
		return
	}
	outcomes, err := commands.ResyncMirrors(ctx, env)
	if err != nil {
		env.Logger.Printf("mirror resync failed err=%v", err)
		return
	}
	env.Logger.Printf("state changed externally, resynced mirrors=%d", len(outcomes))
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
