package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

// Store owns the persisted document. Every mutation goes through Update,
// which holds the store lock across load, change and save.
type Store struct {
	backend Backend
	logger  *log.Logger
	now     func() time.Time

	mu         sync.Mutex
	lastDigest [sha256.Size]byte
	// digest of the last document copied aside, so repeated reads of the
	// same bad bytes keep a single copy
	quarantined [sha256.Size]byte
}

type Options struct {
	Logger *log.Logger
	Now    func() time.Time
}

func New(backend Backend, opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{backend: backend, logger: opts.Logger, now: now}
}

func (s *Store) Load(ctx context.Context) (*coords.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) Save(ctx context.Context, doc *coords.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, doc)
}

// Update loads the document, applies fn and saves the result. When fn
// returns an error nothing is written and the error is returned as is.
func (s *Store) Update(ctx context.Context, fn func(doc *coords.Document) error) (*coords.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return doc, err
	}
	if err := s.saveLocked(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Export returns the canonical encoding of the current document without
// touching its timestamp.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Encode(doc)
}

// ExternallyModified reports whether the stored bytes changed since this
// store last read or wrote them.
func (s *Store) ExternallyModified(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.backend.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load document: %w", err)
	}
	return sha256.Sum256(data) != s.lastDigest, nil
}

func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) loadLocked(ctx context.Context) (*coords.Document, error) {
	data, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	s.lastDigest = sha256.Sum256(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return coords.NewDocument(), nil
	}
	doc, err := Decode(data)
	if err != nil {
		if s.lastDigest != s.quarantined {
			s.logf("store: unreadable document, using defaults err=%v", err)
			s.quarantine(data)
			s.quarantined = s.lastDigest
		}
		return coords.NewDocument(), nil
	}
	return doc, nil
}

func (s *Store) saveLocked(ctx context.Context, doc *coords.Document) error {
	doc.Normalize()
	stamp := s.now().UTC().Format(time.RFC3339)
	doc.Metadata.LastUpdated = &stamp
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.backend.Save(ctx, data); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	s.lastDigest = sha256.Sum256(data)
	return nil
}

func (s *Store) quarantine(data []byte) {
	q, ok := s.backend.(quarantiner)
	if !ok {
		return
	}
	path, err := q.Quarantine(data, s.now())
	if err != nil {
		s.logf("store: quarantine failed err=%v", err)
		return
	}
	s.logf("store: kept unreadable document path=%s", path)
}

func (s *Store) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Decode validates and parses document bytes.
func Decode(data []byte) (*coords.Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc coords.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// Encode renders doc the way it is stored: four space indent and a
// trailing newline.
func Encode(doc *coords.Document) ([]byte, error) {
	doc.Normalize()
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
