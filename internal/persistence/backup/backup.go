package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrNoBackups = errors.New("no backups available")

const (
	filePrefix  = "coordinates_"
	fileSuffix  = ".json"
	stampLayout = "20060102_150405"

	DefaultInterval = 24 * time.Hour
	DefaultKeep     = 30
)

// Exporter produces the bytes to back up.
type Exporter interface {
	Export(ctx context.Context) ([]byte, error)
}

type Options struct {
	Dir    string
	Keep   int
	Logger *log.Logger
	Now    func() time.Time
	// OnWrite is called with the path of every new backup.
	OnWrite func(path string)
}

type Manager struct {
	dir     string
	keep    int
	source  Exporter
	logger  *log.Logger
	now     func() time.Time
	onWrite func(string)
}

func New(source Exporter, opts Options) *Manager {
	keep := opts.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		dir:     opts.Dir,
		keep:    keep,
		source:  source,
		logger:  opts.Logger,
		now:     now,
		onWrite: opts.OnWrite,
	}
}

func (m *Manager) Dir() string { return m.dir }

// FileName is the backup name for a snapshot taken at t.
func FileName(t time.Time) string {
	return filePrefix + t.UTC().Format(stampLayout) + fileSuffix
}

// ParseFileName returns the time encoded in a backup file name.
func ParseFileName(name string) (time.Time, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, filePrefix) || !strings.HasSuffix(base, fileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileSuffix)
	t, err := time.ParseInLocation(stampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Snapshot writes one backup and prunes old ones.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	data, err := m.source.Export(ctx)
	if err != nil {
		return "", fmt.Errorf("export document: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(m.dir, FileName(m.now()))
	// Names have second resolution; the first copy of a second wins.
	if _, err := os.Stat(dst); err == nil {
		m.logf("backup exists, skipping path=%s", dst)
		return dst, nil
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := m.prune(); err != nil {
		m.logf("backup prune failed dir=%s err=%v", m.dir, err)
	}
	if m.onWrite != nil {
		m.onWrite(dst)
	}
	return dst, nil
}

// List returns backup paths, oldest first.
func (m *Manager) List() ([]string, error) {
	ents, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if _, ok := ParseFileName(e.Name()); !ok {
			continue
		}
		out = append(out, filepath.Join(m.dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (m *Manager) Latest() (string, error) {
	all, err := m.List()
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "", ErrNoBackups
	}
	return all[len(all)-1], nil
}

// Run takes a backup immediately and then every interval until ctx ends.
// Failures are logged.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m.runOnce(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Manager) runOnce(ctx context.Context) {
	path, err := m.Snapshot(ctx)
	if err != nil {
		m.logf("backup failed dir=%s err=%v", m.dir, err)
		return
	}
	m.logf("backup written path=%s", path)
}

func (m *Manager) prune() error {
	all, err := m.List()
	if err != nil {
		return err
	}
	for len(all) > m.keep {
		if err := os.Remove(all[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		all = all[1:]
	}
	return nil
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
