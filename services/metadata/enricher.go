package metadata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"listforge/models"
)

const (
	defaultBatchSize     = 25
	defaultMaxConcurrent = 5
	defaultItemTimeout   = 4 * time.Second

	// A batch slower than this doubles the inter-batch delay; a faster one
	// halves it again. Crude, but it tracks upstream rate limiting well.
	slowBatchThreshold = 2500 * time.Millisecond
	maxInterBatchDelay = 2 * time.Second
	minInterBatchDelay = 100 * time.Millisecond
)

// Enricher fills descriptive fields of catalog items from the metadata
// service. Lookups run in bounded batches so a 500-item page cannot fan out
// into 500 simultaneous upstream calls.
type Enricher struct {
	client        *Client
	log           *slog.Logger
	batchSize     int
	maxConcurrent int
	itemTimeout   time.Duration

	mu    sync.Mutex
	delay time.Duration // current inter-batch delay, adapted per batch
}

func NewEnricher(client *Client) *Enricher {
	return &Enricher{
		client:        client,
		log:           slog.Default().With("component", "enricher"),
		batchSize:     defaultBatchSize,
		maxConcurrent: defaultMaxConcurrent,
		itemTimeout:   defaultItemTimeout,
	}
}

// Enrich merges metadata-service fields into items. Service values win;
// provider-supplied fields survive only where the service has nothing.
// Enrichment is best-effort: lookup failures leave the item as it came in,
// and the returned slice always has the same length and order as the input.
func (e *Enricher) Enrich(ctx context.Context, items []models.MetaItem) []models.MetaItem {
	if len(items) == 0 || !e.client.Enabled() {
		return items
	}

	out := make([]models.MetaItem, len(items))
	copy(out, items)

	for start := 0; start < len(out); start += e.batchSize {
		end := start + e.batchSize
		if end > len(out) {
			end = len(out)
		}

		if start > 0 {
			if !e.pause(ctx) {
				break // context gone, keep whatever is enriched so far
			}
		}

		began := time.Now()
		e.enrichBatch(ctx, out[start:end])
		took := time.Since(began)
		e.adapt(took)

		e.log.Debug("enrich.batch", "from", start, "size", end-start,
			"took", took, "delay", e.currentDelay())

		if ctx.Err() != nil {
			break
		}
	}
	return out
}

// enrichBatch resolves one window of items in place with bounded fan-out.
// A failed or slow lookup only affects its own item.
func (e *Enricher) enrichBatch(ctx context.Context, batch []models.MetaItem) {
	p := pool.New().WithMaxGoroutines(e.maxConcurrent)
	for i := range batch {
		i := i
		p.Go(func() {
			itemCtx, cancel := context.WithTimeout(ctx, e.itemTimeout)
			defer cancel()

			meta, err := e.client.Fetch(itemCtx, models.MediaKind(batch[i].Type), batch[i].ID)
			if err != nil {
				e.log.Debug("enrich.miss", "id", batch[i].ID, "error", err)
				return
			}
			if meta != nil {
				batch[i] = merge(batch[i], *meta)
			}
		})
	}
	p.Wait()
}

// merge overlays the service response onto a provider item. The service is
// canonical, so its non-empty fields replace the provider's.
func merge(item, svc models.MetaItem) models.MetaItem {
	if svc.Name != "" {
		item.Name = svc.Name
	}
	if svc.Poster != "" {
		item.Poster = svc.Poster
	}
	if svc.Background != "" {
		item.Background = svc.Background
	}
	if svc.Description != "" {
		item.Description = svc.Description
	}
	if svc.ReleaseInfo != "" {
		item.ReleaseInfo = svc.ReleaseInfo
	}
	if svc.IMDBRating != "" {
		item.IMDBRating = svc.IMDBRating
	}
	if svc.Runtime != "" {
		item.Runtime = svc.Runtime
	}
	if len(svc.Genres) > 0 {
		item.Genres = svc.Genres
	}
	return item
}

// pause sleeps the current inter-batch delay. Returns false when the context
// ended during the wait.
func (e *Enricher) pause(ctx context.Context) bool {
	d := e.currentDelay()
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Enricher) currentDelay() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delay
}

// adapt raises the inter-batch delay after a slow round trip and decays it
// after a fast one.
func (e *Enricher) adapt(took time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if took > slowBatchThreshold {
		if e.delay < minInterBatchDelay {
			e.delay = minInterBatchDelay
		} else {
			e.delay *= 2
		}
		if e.delay > maxInterBatchDelay {
			e.delay = maxInterBatchDelay
		}
		return
	}
	e.delay /= 2
	if e.delay < minInterBatchDelay {
		e.delay = 0
	}
}
