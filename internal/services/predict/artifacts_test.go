package predict

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/services/features"
	"github.com/prateek8731/Market-Monitor/internal/services/ml"
)

func stubArtifact(t *testing.T, horizon int, leafValue float64) *Artifact {
	t.Helper()
	x := [][]float64{make([]float64, len(features.DefaultSchema)), make([]float64, len(features.DefaultSchema))}
	f, err := ml.FitClassifier(x, []int{0, 1}, ml.Config{Trees: 1, Seed: 1})
	require.NoError(t, err)
	f.Trees = []ml.Tree{{Nodes: []ml.Node{{Feature: -1, Value: leafValue}}}}
	return &Artifact{Schema: features.DefaultSchema, Horizon: horizon, Forest: f, Metrics: map[string]float64{"accuracy": leafValue}, TrainedAt: time.Now()}
}

func TestArtifactStore_SwapIsAtomicForReaders(t *testing.T) {
	s := NewArtifactStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, stubArtifact(t, 3, 0.25)))
	key := stubArtifact(t, 3, 0).Key()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				a, ok := s.Get(ctx, key)
				if !assert.True(t, ok) {
					return
				}
				p, err := a.Predict(features.DefaultSchema, make([]float64, len(features.DefaultSchema)))
				assert.NoError(t, err)
				assert.Equal(t, a.Metrics["accuracy"], p, "artifact fields must come from one version")
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Put(ctx, stubArtifact(t, 3, float64(i%2)*0.5+0.25)))
	}
	close(stop)
	wg.Wait()
	assert.Len(t, s.Keys(), 1)
}

func TestArtifactStore_Persister(t *testing.T) {
	p := newMemPersister()
	ctx := context.Background()
	a := stubArtifact(t, 5, 0.75)
	require.NoError(t, NewArtifactStore(WithPersister(p)).Put(ctx, a))
	assert.Contains(t, p.blobs, a.Key().String())

	fresh := NewArtifactStore(WithPersister(p))
	got, ok := fresh.Get(ctx, a.Key())
	require.True(t, ok)
	assert.Equal(t, 5, got.Horizon)
	v, err := got.Predict(features.DefaultSchema, make([]float64, len(features.DefaultSchema)))
	require.NoError(t, err)
	assert.Equal(t, 0.75, v)

	missing := ArtifactKey{Kind: ml.KindClassifier, Schema: "nope", Horizon: 1}
	loads := p.loads
	_, ok = fresh.Get(ctx, missing)
	assert.False(t, ok)
	_, ok = fresh.Get(ctx, missing)
	assert.False(t, ok)
	assert.Equal(t, loads+1, p.loads, "persister consulted once per missing key")
}
