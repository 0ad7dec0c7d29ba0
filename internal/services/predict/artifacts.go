package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/internal/services/features"
	"github.com/prateek8731/Market-Monitor/internal/services/ml"
	"github.com/prateek8731/Market-Monitor/pkg/logger"
)

// ArtifactKey identifies a trained model by estimator kind, schema fingerprint and horizon.
type ArtifactKey struct {
	Kind    ml.Kind
	Schema  string
	Horizon int
}

func (k ArtifactKey) String() string {
	return fmt.Sprintf("model:%s:%s:h%d", k.Kind, k.Schema, k.Horizon)
}

// Artifact is an immutable trained predictor bound to its feature schema.
type Artifact struct {
	Schema    features.Schema    `json:"schema"`
	Horizon   int                `json:"horizon"`
	Threshold float64            `json:"threshold"`
	Forest    *ml.Forest         `json:"forest"`
	Metrics   map[string]float64 `json:"metrics"`
	TrainedAt time.Time          `json:"trained_at"`
}

// Key derives the store key of a.
func (a *Artifact) Key() ArtifactKey {
	return ArtifactKey{Kind: a.Forest.Kind, Schema: a.Schema.Fingerprint(), Horizon: a.Horizon}
}

// Predict rejects rows built from any other schema.
func (a *Artifact) Predict(schema features.Schema, row []float64) (float64, error) {
	if !a.Schema.Equal(schema) {
		return 0, fmt.Errorf("artifact schema %s, row schema %s: %w", a.Schema.Fingerprint(), schema.Fingerprint(), models.ErrSchemaMismatch)
	}
	return a.Forest.Predict(row)
}

type artifactMap map[ArtifactKey]*Artifact

// ArtifactStore holds one artifact per key. Readers load an immutable map snapshot;
// writers replace the whole map, so a reader never observes a partial retrain.
type ArtifactStore struct {
	current   atomic.Pointer[artifactMap]
	mu        sync.Mutex // serialises writers and persister probes
	probed    map[ArtifactKey]bool
	persister repository.ArtifactPersister
	log       *logger.Logger
}

// StoreOption configures an ArtifactStore.
type StoreOption func(*ArtifactStore)

// WithPersister backs the store with durable storage consulted on a memory miss.
func WithPersister(p repository.ArtifactPersister) StoreOption {
	return func(s *ArtifactStore) { s.persister = p }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *logger.Logger) StoreOption {
	return func(s *ArtifactStore) { s.log = l }
}

func NewArtifactStore(opts ...StoreOption) *ArtifactStore {
	s := &ArtifactStore{probed: map[ArtifactKey]bool{}, log: logger.Nop()}
	for _, o := range opts {
		o(s)
	}
	empty := artifactMap{}
	s.current.Store(&empty)
	return s
}

// Get returns the artifact for key, loading it from the persister at most once per key.
func (s *ArtifactStore) Get(ctx context.Context, key ArtifactKey) (*Artifact, bool) {
	if a, ok := (*s.current.Load())[key]; ok {
		return a, true
	}
	if s.persister == nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := (*s.current.Load())[key]; ok {
		return a, true
	}
	if s.probed[key] {
		return nil, false
	}
	s.probed[key] = true

	blob, found, err := s.persister.Load(ctx, key.String())
	if err != nil {
		s.log.Warn("artifact load failed", logger.String("key", key.String()), logger.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	var a Artifact
	if err := json.Unmarshal(blob, &a); err != nil || a.Forest == nil {
		s.log.Warn("artifact decode failed", logger.String("key", key.String()), logger.Error(fmt.Errorf("decode: %v", err)))
		return nil, false
	}
	if a.Key() != key {
		s.log.Warn("persisted artifact key mismatch", logger.String("key", key.String()), logger.String("found", a.Key().String()))
		return nil, false
	}
	s.swap(key, &a)
	return &a, true
}

// Put atomically binds a under its key and persists it when a persister is configured.
// The in-memory swap happens even if persisting fails.
func (s *ArtifactStore) Put(ctx context.Context, a *Artifact) error {
	key := a.Key()
	s.mu.Lock()
	s.swap(key, a)
	s.probed[key] = true
	s.mu.Unlock()

	if s.persister == nil {
		return nil
	}
	blob, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := s.persister.Save(ctx, key.String(), blob); err != nil {
		return fmt.Errorf("persist artifact %s: %w", key, err)
	}
	return nil
}

// swap must be called with mu held.
func (s *ArtifactStore) swap(key ArtifactKey, a *Artifact) {
	old := *s.current.Load()
	next := make(artifactMap, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[key] = a
	s.current.Store(&next)
}

// Keys lists bound artifacts.
func (s *ArtifactStore) Keys() []ArtifactKey {
	m := *s.current.Load()
	out := make([]ArtifactKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
