package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/commands"
	"github.com/jcvilalta/MineDeezCoords/internal/coords"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/changelog"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/indexdb"
)

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	load := configFlags(fs)
	location := fs.String("location", "", "only changes of this location")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)
	cfg := load()

	if _, err := os.Stat(cfg.Index.Path); err != nil {
		fail("index", err)
	}
	idx, err := indexdb.OpenSQLite(cfg.Index.Path, nil)
	if err != nil {
		fail("open index", err)
	}
	defer idx.Close()

	ctx := context.Background()
	changes, err := idx.RecentChanges(ctx, coords.FormatName(*location), *limit)
	if err != nil {
		fail("query", err)
	}
	for _, c := range changes {
		fmt.Printf("%s\t%s\t%s\n", c.Time.Format(time.RFC3339), c.UserID, commands.DescribeChange(c))
	}
	total, err := idx.CountChanges(ctx)
	if err != nil {
		fail("count", err)
	}
	fmt.Fprintf(os.Stderr, "%d of %d changes\n", len(changes), total)
}

// reindexCmd replaces the history index with the contents of the change
// log. The bot must not be running.
func reindexCmd(args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	load := configFlags(fs)
	_ = fs.Parse(args)
	cfg := load()

	var changes []coords.Change
	if err := changelog.ReadDir(cfg.ChangeLog.Dir, func(c coords.Change) error {
		changes = append(changes, c)
		return nil
	}); err != nil {
		fail("read change log", err)
	}

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(cfg.Index.Path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			fail("remove old index", err)
		}
	}
	idx, err := indexdb.OpenSQLite(cfg.Index.Path, nil)
	if err != nil {
		fail("open index", err)
	}
	defer idx.Close()
	if err := idx.Import(context.Background(), changes); err != nil {
		fail("import", err)
	}
	fmt.Printf("indexed %d changes into %s\n", len(changes), cfg.Index.Path)
}
