package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/logging"
	"reelforge/internal/services"
	"reelforge/internal/textutil"
)

// Well-known artifact names written by the pipeline.
const (
	NameAudio  = "voice.mp3"
	NameVideo  = "video.mp4"
	NameScript = "script.txt"
)

// ErrNotFound reports a missing run or artifact.
var ErrNotFound = fmt.Errorf("%w: artifact", services.ErrNotFound)

// Artifact describes one stored blob.
type Artifact struct {
	RunID       string    `json:"run_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key returns the backend key "{runID}/{name}".
func (a Artifact) Key() string {
	return Key(a.RunID, a.Name)
}

// Path returns the HTTP path the artifact is served from.
func (a Artifact) Path() string {
	return "/artifacts/" + a.RunID + "/" + a.Name
}

// Key joins a run ID and artifact name into a backend key.
func Key(runID, name string) string {
	return runID + "/" + name
}

// Object is a backend listing entry used to rebuild the index.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Backend stores artifact bytes by key.
type Backend interface {
	Name() string
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Object, error)
	Close() error
}

// entry tracks a run's artifacts. updatedAt is the newest write and drives
// TTL eviction, so an artifact added to an older run keeps the run alive.
type entry struct {
	updatedAt time.Time
	items     map[string]Artifact
}

// Store indexes artifacts by run over a blob backend. The index is the
// source of truth for TTL eviction and latest-artifact lookups.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	runs    map[string]*entry
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore wraps backend with a TTL index.
func NewStore(backend Backend, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		runs:    make(map[string]*entry),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "artifacts")
	return s
}

// Backend returns the underlying blob backend name.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// TTL returns the retention period.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// ValidateRunID rejects identifiers that are not UUIDs so run IDs can never
// escape the per-run key space.
func ValidateRunID(runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return services.Wrap(services.ErrValidation, "artifacts", "run id", fmt.Sprintf("invalid run id %q", runID), nil)
	}
	return nil
}

// CleanName normalizes an artifact name to a single safe path segment.
func CleanName(name string) (string, error) {
	cleaned := textutil.SanitizeFileName(name)
	if cleaned == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".") {
		return "", services.Wrap(services.ErrValidation, "artifacts", "name", fmt.Sprintf("invalid artifact name %q", name), nil)
	}
	return cleaned, nil
}

// Put stores data under {runID}/{name}. Writing the same name twice within a
// run replaces the earlier blob; runs never share keys.
func (s *Store) Put(ctx context.Context, runID, name, contentType string, data []byte) (Artifact, error) {
	if err := ValidateRunID(runID); err != nil {
		return Artifact{}, err
	}
	name, err := CleanName(name)
	if err != nil {
		return Artifact{}, err
	}
	if contentType == "" {
		contentType = contentTypeFor(name)
	}
	if err := s.backend.Put(ctx, Key(runID, name), data); err != nil {
		return Artifact{}, fmt.Errorf("store artifact %s: %w", Key(runID, name), err)
	}

	now := s.now()
	artifact := Artifact{
		RunID:       runID,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   now,
	}

	s.mu.Lock()
	e, ok := s.runs[runID]
	if !ok {
		e = &entry{items: make(map[string]Artifact)}
		s.runs[runID] = e
	}
	e.updatedAt = now
	e.items[name] = artifact
	s.mu.Unlock()

	s.logger.Debug("artifact stored",
		logging.String(logging.FieldRunID, runID),
		logging.String("name", name),
		logging.Int64("bytes", artifact.Size),
	)
	return artifact, nil
}

// Lookup returns index metadata without reading the blob.
func (s *Store) Lookup(runID, name string) (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.runs[runID]
	if !ok {
		return Artifact{}, false
	}
	artifact, ok := e.items[name]
	return artifact, ok
}

// Get returns an artifact and its bytes.
func (s *Store) Get(ctx context.Context, runID, name string) (Artifact, []byte, error) {
	artifact, ok := s.Lookup(runID, name)
	if !ok {
		return Artifact{}, nil, fmt.Errorf("%w: %s", ErrNotFound, Key(runID, name))
	}
	data, err := s.backend.Get(ctx, artifact.Key())
	if err != nil {
		return Artifact{}, nil, err
	}
	return artifact, data, nil
}

// List returns the artifacts of one run sorted by name.
func (s *Store) List(runID string) []Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.runs[runID]
	if !ok {
		return nil
	}
	out := make([]Artifact, 0, len(e.items))
	for _, artifact := range e.items {
		out = append(out, artifact)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Latest returns the most recently stored artifact with the given name
// across all runs.
func (s *Store) Latest(name string) (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best Artifact
	found := false
	for _, e := range s.runs {
		artifact, ok := e.items[name]
		if !ok {
			continue
		}
		if !found || artifact.CreatedAt.After(best.CreatedAt) {
			best = artifact
			found = true
		}
	}
	return best, found
}

// Ping checks that the backend is reachable when it supports a probe.
func (s *Store) Ping() error {
	if pinger, ok := s.backend.(interface{ Ping() error }); ok {
		return pinger.Ping()
	}
	return nil
}

// Count returns the number of indexed runs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Evict removes every artifact of a run from the backend and the index.
func (s *Store) Evict(ctx context.Context, runID string) error {
	s.mu.Lock()
	e, ok := s.runs[runID]
	if ok {
		delete(s.runs, runID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}

	var errs []error
	for name := range e.items {
		if err := s.backend.Delete(ctx, Key(runID, name)); err != nil && !errors.Is(err, services.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep evicts runs whose newest artifact is older than the TTL at now.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-s.ttl)

	s.mu.RLock()
	expired := make([]string, 0)
	for runID, e := range s.runs {
		if !e.updatedAt.After(cutoff) {
			expired = append(expired, runID)
		}
	}
	s.mu.RUnlock()

	var errs []error
	evicted := 0
	for _, runID := range expired {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.Evict(ctx, runID); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			errs = append(errs, err)
		}
		evicted++
	}
	if evicted > 0 {
		s.logger.Info("artifacts swept",
			logging.Int("runs", evicted),
			logging.Duration("ttl", s.ttl),
			logging.String(logging.FieldEventType, "artifacts_swept"),
		)
	}
	return evicted, errors.Join(errs...)
}

// Rebuild repopulates the index from the backend listing. Keys that do not
// match {uuid}/{name} are ignored.
func (s *Store) Rebuild(ctx context.Context) (int, error) {
	objects, err := s.backend.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list artifacts: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for _, obj := range objects {
		runID, name, ok := strings.Cut(obj.Key, "/")
		if !ok || ValidateRunID(runID) != nil || strings.Contains(name, "/") {
			continue
		}
		e, exists := s.runs[runID]
		if !exists {
			e = &entry{updatedAt: obj.ModTime, items: make(map[string]Artifact)}
			s.runs[runID] = e
		}
		if obj.ModTime.After(e.updatedAt) {
			e.updatedAt = obj.ModTime
		}
		e.items[name] = Artifact{
			RunID:       runID,
			Name:        name,
			ContentType: contentTypeFor(name),
			Size:        obj.Size,
			CreatedAt:   obj.ModTime,
		}
		loaded++
	}
	return loaded, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
