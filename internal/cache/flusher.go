// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/pkg/errutil"
)

// DefaultFlushInterval is the period between batch flushes.
const DefaultFlushInterval = 5 * time.Minute

// BatchSaver persists a batch of records.
type BatchSaver interface {
	SaveBatch(ctx context.Context, records map[uuid.UUID]store.Record) error
}

// FlusherOption configures a Flusher.
type FlusherOption func(*Flusher)

// WithFlushInterval sets the period between flushes.
func WithFlushInterval(d time.Duration) FlusherOption {
	return func(f *Flusher) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithFlusherLogger sets the logger.
func WithFlusherLogger(logger *slog.Logger) FlusherOption {
	return func(f *Flusher) {
		f.logger = logger
	}
}

// WithFlusherMetrics records flush outcomes.
func WithFlusherMetrics(m *Metrics) FlusherOption {
	return func(f *Flusher) {
		f.metrics = m
	}
}

// Flusher periodically writes a snapshot of a PlayerCache to a BatchSaver.
// A failed flush leaves the cache untouched, so the next flush retries the
// same records.
type Flusher struct {
	cache    *PlayerCache
	saver    BatchSaver
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFlusher creates a Flusher. Call Start to begin periodic flushing.
func NewFlusher(c *PlayerCache, saver BatchSaver, opts ...FlusherOption) *Flusher {
	f := &Flusher{
		cache:    c,
		saver:    saver,
		interval: DefaultFlushInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Interval returns the period between flushes.
func (f *Flusher) Interval() time.Duration {
	return f.interval
}

// Start launches the flush loop. It returns an error if the loop is already running.
func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		return oops.Code("CACHE_FLUSHER_RUNNING").Errorf("flusher already started")
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(loopCtx, f.done)

	f.logger.InfoContext(ctx, "cache flusher started", "interval", f.interval)
	return nil
}

func (f *Flusher) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = f.Flush(ctx) //nolint:errcheck // logged in Flush, retried next tick
		}
	}
}

// Flush writes the current snapshot. An empty cache makes no store call.
// Flushes are serialized with each other and with PlayerCache.Exclusive.
func (f *Flusher) Flush(ctx context.Context) error {
	f.cache.persistMu.Lock()
	defer f.cache.persistMu.Unlock()

	snapshot := f.cache.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	err := f.saver.SaveBatch(ctx, snapshot)
	f.metrics.recordFlush(len(snapshot), err)
	if err != nil {
		errutil.LogErrorContext(ctx, f.logger, "cache flush failed, records kept for the next flush", err)
		return err //nolint:wrapcheck // backends return coded errors
	}

	f.logger.DebugContext(ctx, "cache flushed", "records", len(snapshot))
	return nil
}

// Stop ends the flush loop and performs a final flush with ctx.
func (f *Flusher) Stop(ctx context.Context) error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return oops.Code("CACHE_FLUSHER_STOP_TIMEOUT").Wrap(ctx.Err())
		}
	}

	return f.Flush(ctx)
}
