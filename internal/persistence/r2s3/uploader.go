package r2s3

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	QueueDepth         int
	QueueCapacity      int
	EnqueuedTotal      uint64
	DroppedTotal       uint64
	UploadSuccessTotal uint64
	UploadFailTotal    uint64
	LastSuccessUnix    int64
	LastErrorUnix      int64
}

type putter interface {
	PutFile(ctx context.Context, objectKey, localPath string) error
}

type UploaderOptions struct {
	// Prefix is prepended to every object key.
	Prefix        string
	Workers       int
	QueueCapacity int
	MaxAttempts   int
	// Backoff is multiplied by attempt² between retries.
	Backoff time.Duration
	Logger  *log.Logger
}

// Uploader copies local files (backups, rotated change logs) to the bucket
// in the background. Object keys are "<prefix>/<category>/<file name>".
type Uploader struct {
	client      putter
	prefix      string
	maxAttempts int
	backoff     time.Duration
	logger      *log.Logger

	jobs chan job
	wg   sync.WaitGroup
	once sync.Once

	enqueuedTotal      atomic.Uint64
	droppedTotal       atomic.Uint64
	uploadSuccessTotal atomic.Uint64
	uploadFailTotal    atomic.Uint64
	lastSuccessUnix    atomic.Int64
	lastErrorUnix      atomic.Int64
}

type job struct {
	category  string
	localPath string
}

func NewUploader(client putter, opts UploaderOptions) *Uploader {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 64
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 4
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	u := &Uploader{
		client:      client,
		prefix:      strings.Trim(strings.ReplaceAll(opts.Prefix, "\\", "/"), "/"),
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
		jobs:        make(chan job, opts.QueueCapacity),
	}
	for i := 0; i < opts.Workers; i++ {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			for j := range u.jobs {
				u.uploadOne(j)
			}
		}()
	}
	return u
}

// Enqueuer returns a callback that queues files under category, suitable
// for backup and change log hooks.
func (u *Uploader) Enqueuer(category string) func(localPath string) {
	return func(localPath string) { u.Enqueue(category, localPath) }
}

// Enqueue never blocks; files are dropped when the queue is full.
func (u *Uploader) Enqueue(category, localPath string) {
	if u == nil {
		return
	}
	u.enqueuedTotal.Add(1)
	select {
	case u.jobs <- job{category: category, localPath: localPath}:
	default:
		dropped := u.droppedTotal.Add(1)
		u.printf("upload drop local=%s reason=queue_saturated dropped_total=%d", localPath, dropped)
	}
}

// Close waits for queued uploads to finish.
func (u *Uploader) Close() {
	if u == nil {
		return
	}
	u.once.Do(func() {
		close(u.jobs)
		u.wg.Wait()
	})
}

func (u *Uploader) Stats() Stats {
	if u == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(u.jobs),
		QueueCapacity:      cap(u.jobs),
		EnqueuedTotal:      u.enqueuedTotal.Load(),
		DroppedTotal:       u.droppedTotal.Load(),
		UploadSuccessTotal: u.uploadSuccessTotal.Load(),
		UploadFailTotal:    u.uploadFailTotal.Load(),
		LastSuccessUnix:    u.lastSuccessUnix.Load(),
		LastErrorUnix:      u.lastErrorUnix.Load(),
	}
}

func (u *Uploader) ObjectKey(category, localPath string) (string, error) {
	base := filepath.Base(localPath)
	if localPath == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid local path %q", localPath)
	}
	key := path.Join(category, base)
	if u.prefix != "" {
		key = path.Join(u.prefix, key)
	}
	return key, nil
}

func (u *Uploader) uploadOne(j job) {
	key, err := u.ObjectKey(j.category, j.localPath)
	if err != nil {
		u.printf("upload skip local=%s err=%v", j.localPath, err)
		return
	}
	if err := u.uploadWithRetry(key, j.localPath); err != nil {
		u.uploadFailTotal.Add(1)
		u.lastErrorUnix.Store(time.Now().UTC().Unix())
		u.printf("upload failed key=%s local=%s err=%v", key, j.localPath, err)
		return
	}
	u.uploadSuccessTotal.Add(1)
	u.lastSuccessUnix.Store(time.Now().UTC().Unix())
	u.printf("uploaded key=%s local=%s", key, j.localPath)
}

func (u *Uploader) uploadWithRetry(key, localPath string) error {
	var lastErr error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := u.client.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < u.maxAttempts {
			time.Sleep(time.Duration(attempt*attempt) * u.backoff)
		}
	}
	return lastErr
}

func (u *Uploader) printf(format string, args ...any) {
	if u.logger != nil {
		u.logger.Printf(format, args...)
	}
}
