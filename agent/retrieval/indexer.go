package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

type IndexStats struct {
	Seen     int
	Embedded int
	Skipped  int
	Failed   int
}

// Indexer embeds entities whose source text changed since the last run.
type Indexer struct {
	store    VectorStore
	embedder Embedder
	workers  int
}

func NewIndexer(store VectorStore, embedder Embedder, workers int) *Indexer {
	if workers <= 0 {
		workers = 4
	}
	return &Indexer{store: store, embedder: embedder, workers: workers}
}

func (ix *Indexer) Index(ctx context.Context, entities []Entity) (IndexStats, error) {
	if ix.embedder == nil {
		return IndexStats{}, ErrEmbeddingUnavailable
	}

	var (
		mu    sync.Mutex
		stats = IndexStats{Seen: len(entities)}
		docs  = make([]Document, 0, len(entities))
	)
	start := time.Now()

	p := pool.New().WithContext(ctx).WithMaxGoroutines(ix.workers)
	for _, e := range entities {
		p.Go(func(ctx context.Context) error {
			hash := e.SourceHash()
			_, stored, err := ix.store.Vector(ctx, e.Kind, e.ID)
			switch {
			case err == nil && stored == hash:
				mu.Lock()
				stats.Skipped++
				mu.Unlock()
				return nil
			case err != nil && !errors.Is(err, ErrNotFound):
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				return fmt.Errorf("%s %s: %w", e.Kind, e.ID, err)
			}

			vec, err := ix.embedder.Embed(ctx, e.SourceText())
			if err != nil {
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				return fmt.Errorf("embed %s %s: %w", e.Kind, e.ID, err)
			}
			mu.Lock()
			docs = append(docs, Document{Entity: e, Vector: vec, Hash: hash})
			stats.Embedded++
			mu.Unlock()
			return nil
		})
	}
	poolErr := p.Wait()

	if err := ix.store.Upsert(ctx, docs); err != nil {
		return stats, errors.Join(poolErr, err)
	}

	log.Ctx(ctx).Info().
		Int("seen", stats.Seen).
		Int("embedded", stats.Embedded).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("catalog index complete")
	return stats, poolErr
}
