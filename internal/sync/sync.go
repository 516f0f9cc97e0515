// Package sync periodically exports the dependency graph as JSONL to
// external destinations.
package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// Destination is the interface for a sync target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Scheduler runs periodic syncs to one or more destinations.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu         sync.Mutex
	lastDigest [sha256.Size]byte
	synced     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.SyncOnce(ctx); err != nil {
		s.logger.Error("sync failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncOnce(ctx); err != nil {
				s.logger.Error("sync failed", "err", err)
			}
		}
	}
}

// SyncOnce exports the graph and writes it to every destination. When the
// tasks and edges are unchanged since the last successful sync nothing is
// written and wrote is false. Destination failures are logged; the error
// reports only export failures and the case where every destination failed.
func (s *Scheduler) SyncOnce(ctx context.Context) (wrote bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		return false, fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	digest := bodyDigest(data)
	if s.synced && digest == s.lastDigest {
		s.logger.Debug("sync skipped, graph unchanged")
		return false, nil
	}

	failed := 0
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			failed++
			s.logger.Error("sync destination write failed", "destination", dest.Name(), "err", err)
		}
	}
	if len(s.destinations) > 0 && failed == len(s.destinations) {
		return false, fmt.Errorf("all %d destinations failed", failed)
	}

	// A partial failure still advances the digest; the failed destination
	// catches up on the next change.
	s.lastDigest = digest
	s.synced = true
	s.logger.Info("sync completed", "destinations", len(s.destinations), "failed", failed, "bytes", len(data))
	return true, nil
}

// bodyDigest hashes everything after the header line, which carries the
// export timestamp.
func bodyDigest(data []byte) [sha256.Size]byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	return sha256.Sum256(data)
}
