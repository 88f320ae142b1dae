package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pomodoro/timerd/internal/model"
)

const snapshotWriteTimeout = 5 * time.Second

// snapshotWriter stores snapshots off the caller's goroutine. It keeps only
// the newest pending snapshot; older ones are superseded, never queued.
type snapshotWriter struct {
	save func(ctx context.Context, snapshot model.PersistedSession) error

	mu      sync.Mutex
	pending *model.PersistedSession

	// saveMu orders take-and-save so an older snapshot never lands last.
	saveMu sync.Mutex

	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSnapshotWriter(save func(ctx context.Context, snapshot model.PersistedSession) error) *snapshotWriter {
	w := &snapshotWriter{
		save: save,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *snapshotWriter) Store(snapshot model.PersistedSession) {
	w.mu.Lock()
	w.pending = &snapshot
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush writes the pending snapshot, if any, before returning.
func (w *snapshotWriter) Flush() {
	w.flush()
}

func (w *snapshotWriter) Close() {
	w.closeOnce.Do(func() { close(w.quit) })
	<-w.done
}

func (w *snapshotWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.quit:
			w.flush()
			return
		}
	}
}

func (w *snapshotWriter) flush() {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	snapshot := w.pending
	w.pending = nil
	w.mu.Unlock()
	if snapshot == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotWriteTimeout)
	defer cancel()
	if err := w.save(ctx, *snapshot); err != nil {
		log.Error().Err(err).Str("sessionType", string(snapshot.SessionType)).Msg("Failed to persist timer snapshot")
	}
}
