package changelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

const (
	filePrefix   = "changes"
	fileSuffix   = ".jsonl.zst"
	periodLayout = "2006-01-02"
)

// JSONLZstdWriter appends JSON lines to zstd files, one file per day.
// Every write is flushed through the encoder so a crash loses at most the
// line being written.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time
	// onRotate receives the path of each file that was closed.
	onRotate func(path string)

	mu        sync.Mutex
	curPeriod string
	f         *os.File
	enc       *zstd.Encoder
	w         *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	period := w.now().UTC().Format(periodLayout)
	if period != w.curPeriod {
		if err := w.rotateLocked(period); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(period string) error {
	prev := w.curPeriod
	if err := w.closeLocked(); err != nil {
		return err
	}
	if prev != "" && w.onRotate != nil {
		w.onRotate(w.pathFor(prev))
	}
	path := w.pathFor(period)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 32*1024)
	w.curPeriod = period
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curPeriod = ""
	return err1
}

func (w *JSONLZstdWriter) pathFor(period string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s%s", w.prefix, period, fileSuffix))
}

// ChangeLog records every registry change as one compressed JSON line.
type ChangeLog struct {
	w      *JSONLZstdWriter
	logger *log.Logger
}

type Options struct {
	Logger   *log.Logger
	Now      func() time.Time
	OnRotate func(path string)
}

func New(dir string, opts Options) *ChangeLog {
	w := NewJSONLZstdWriter(dir, filePrefix)
	if opts.Now != nil {
		w.now = opts.Now
	}
	w.onRotate = opts.OnRotate
	return &ChangeLog{w: w, logger: opts.Logger}
}

func (l *ChangeLog) WriteChange(c coords.Change) error { return l.w.Write(c) }

// RecordChange is WriteChange with errors logged instead of returned.
func (l *ChangeLog) RecordChange(c coords.Change) {
	if err := l.WriteChange(c); err != nil && l.logger != nil {
		l.logger.Printf("changelog write failed action=%s location=%q err=%v", c.Action, c.Location, err)
	}
}

func (l *ChangeLog) Close() error { return l.w.Close() }
