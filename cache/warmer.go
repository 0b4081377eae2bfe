package cache

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/warp/charge-engine/charges"
)

// =============================================================================
// CACHE WARMER
// =============================================================================

// Warmer periodically fills the cache with every stored scheme that has no
// entry yet, so that a cold cache after a deploy does not send every read to
// the database. Entries written by saves and tombstones left by deletes are
// never replaced.
type Warmer struct {
	Store    charges.SchemeStore
	Cache    SchemeCache
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewWarmer(store charges.SchemeStore, cache SchemeCache, interval time.Duration) *Warmer {
	return &Warmer{Store: store, Cache: cache, Interval: interval}
}

// Start runs one warm pass immediately, then one per Interval.
// A non-positive Interval disables the warmer.
func (w *Warmer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Interval <= 0 {
		log.Info("[Warmer] Disabled, not starting")
		return
	}
	if w.ticker != nil {
		return
	}

	w.ticker = time.NewTicker(w.Interval)
	w.stop = make(chan struct{})
	w.wg.Add(1)
	go w.run()

	log.WithField("interval", w.Interval).Info("[Warmer] Started")
}

// Stop halts the warmer and waits for a running pass to finish.
func (w *Warmer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ticker == nil {
		return
	}
	w.ticker.Stop()
	close(w.stop)
	w.wg.Wait()
	w.ticker = nil
	log.Info("[Warmer] Stopped")
}

func (w *Warmer) run() {
	defer w.wg.Done()

	w.Warm(context.Background())
	for {
		select {
		case <-w.ticker.C:
			w.Warm(context.Background())
		case <-w.stop:
			return
		}
	}
}

// Warm fills missing cache entries from the store and returns how many were
// written.
func (w *Warmer) Warm(ctx context.Context) int {
	records, err := w.Store.ListSchemes(ctx, charges.SchemeFilter{})
	if err != nil {
		log.WithError(err).Error("[Warmer] Listing schemes failed")
		return 0
	}

	written := 0
	for _, rec := range records {
		ok, err := w.Cache.Fill(ctx, rec)
		if err != nil {
			log.WithError(err).WithField("scheme_id", rec.ID).Warn("[Warmer] Cache write failed")
			continue
		}
		if ok {
			written++
		}
	}

	log.WithFields(log.Fields{"schemes": len(records), "written": written}).Debug("[Warmer] Pass complete")
	return written
}
