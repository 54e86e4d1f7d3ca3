package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/commands"
	"github.com/jcvilalta/MineDeezCoords/internal/config"
	"github.com/jcvilalta/MineDeezCoords/internal/coords"
	"github.com/jcvilalta/MineDeezCoords/internal/mirror"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/backup"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/changelog"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/store"
)

const usage = `usage: admin <command> [flags]

commands:
  summary     print the rendered summary of the saved coordinates
  backups     list backup files
  restore     replace the saved coordinates with a backup
  validate    check a coordinates file against the document schema
  audit       print the change log
  history     print recent changes from the history index
  reindex     rebuild the history index from the change log
  live        print the latest summary published by a running bot
  backup-now  ask a running bot to write a backup
  resync      ask a running bot to re-render every summary message`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "summary":
		summaryCmd(args)
	case "backups":
		backupsCmd(args)
	case "restore":
		restoreCmd(args)
	case "validate":
		validateCmd(args)
	case "audit":
		auditCmd(args)
	case "history":
		historyCmd(args)
	case "reindex":
		reindexCmd(args)
	case "live":
		liveCmd(args)
	case "backup-now":
		backupNowCmd(args)
	case "resync":
		resyncCmd(args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

// configFlags registers -config and -data on fs; call the returned func
// after fs.Parse.
func configFlags(fs *flag.FlagSet) func() config.Config {
	configPath := fs.String("config", "", "path to bot.yaml (optional)")
	dataDir := fs.String("data", "", "runtime data directory (overrides data_dir)")
	return func() config.Config {
		cfg, err := config.Load(*configPath, func(c *config.Config) {
			if *dataDir != "" {
				c.DataDir = *dataDir
			}
		})
		if err != nil {
			fail("config", err)
		}
		return cfg
	}
}

func openStore(cfg config.Config) *store.Store {
	backend, err := store.BuildBackendFromDSN(cfg.StateDSN)
	if err != nil {
		fail("state backend", err)
	}
	return store.New(backend, store.Options{})
}

func summaryCmd(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	load := configFlags(fs)
	_ = fs.Parse(args)
	cfg := load()

	st := openStore(cfg)
	defer st.Close()
	doc, err := st.Load(context.Background())
	if err != nil {
		fail("load", err)
	}
	fmt.Println(mirror.Render(doc, "").Text())
	if ts, ok := doc.LastUpdated(); ok {
		fmt.Printf("\nlast updated %s, %d locations, %d mirrors\n", ts.Format(time.RFC3339), doc.Total(), len(doc.Messages))
	}
}

func backupsCmd(args []string) {
	fs := flag.NewFlagSet("backups", flag.ExitOnError)
	load := configFlags(fs)
	_ = fs.Parse(args)
	cfg := load()

	files, err := backup.New(nil, backup.Options{Dir: cfg.Backup.Dir}).List()
	if err != nil {
		fail("list", err)
	}
	if len(files) == 0 {
		fmt.Println("no backups in", cfg.Backup.Dir)
		return
	}
	for _, f := range files {
		ts, _ := backup.ParseFileName(filepath.Base(f))
		st, err := os.Stat(f)
		if err != nil {
			fail("stat", err)
		}
		fmt.Printf("%s\t%s\t%d bytes\n", filepath.Base(f), ts.Format(time.RFC3339), st.Size())
	}
}

func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	load := configFlags(fs)
	file := fs.String("file", "", "backup file name or path (defaults to the latest backup)")
	_ = fs.Parse(args)
	cfg := load()

	path := strings.TrimSpace(*file)
	switch {
	case path == "":
		latest, err := backup.New(nil, backup.Options{Dir: cfg.Backup.Dir}).Latest()
		if err != nil {
			fail("latest backup", err)
		}
		path = latest
	case !strings.ContainsRune(path, filepath.Separator):
		path = filepath.Join(cfg.Backup.Dir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fail("read", err)
	}
	doc, err := store.Decode(data)
	if err != nil {
		fail("backup is not a valid coordinates document", err)
	}

	st := openStore(cfg)
	defer st.Close()
	if err := st.Save(context.Background(), doc); err != nil {
		fail("save", err)
	}
	fmt.Printf("restored %s (%d locations) into %s\n", filepath.Base(path), doc.Total(), cfg.StateDSN)
	fmt.Println("a running bot picks this up through its file watcher; otherwise run `admin resync`")
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	load := configFlags(fs)
	file := fs.String("file", "", "document to check (defaults to the configured state file)")
	_ = fs.Parse(args)
	cfg := load()

	path := strings.TrimSpace(*file)
	if path == "" {
		path = cfg.StatePath()
	}
	if path == "" {
		fail("validate", fmt.Errorf("state %s is not a local file; pass -file", cfg.StateDSN))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fail("read", err)
	}
	doc, err := store.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: invalid: %v\n", path, err)
		os.Exit(1)
	}
	parts := make([]string, 0, 3)
	for _, d := range coords.AllDimensions() {
		parts = append(parts, fmt.Sprintf("%s=%d", d, doc.Count(d)))
	}
	fmt.Printf("%s: ok %s mirrors=%d\n", path, strings.Join(parts, " "), len(doc.Messages))
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	load := configFlags(fs)
	location := fs.String("location", "", "only changes of this location")
	user := fs.String("user", "", "only changes by this user id")
	_ = fs.Parse(args)
	cfg := load()

	name := coords.FormatName(*location)
	n := 0
	err := changelog.ReadDir(cfg.ChangeLog.Dir, func(c coords.Change) error {
		if name != "" && c.Location != name {
			return nil
		}
		if *user != "" && c.UserID != *user {
			return nil
		}
		n++
		fmt.Printf("%s\t%s\t%s\n", c.Time.Format(time.RFC3339), c.UserID, commands.DescribeChange(c))
		return nil
	})
	if err != nil {
		fail("audit", err)
	}
	fmt.Fprintf(os.Stderr, "%d changes\n", n)
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
