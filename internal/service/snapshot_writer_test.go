package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pomodoro/timerd/internal/model"
)

type savedSnapshots struct {
	mu    sync.Mutex
	saved []int
	err   error
}

func (s *savedSnapshots) save(_ context.Context, snapshot model.PersistedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snapshot.CurrentTime)
	return s.err
}

func (s *savedSnapshots) values() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.saved...)
}

func TestSnapshotWriterLastWriteWins(t *testing.T) {
	store := &savedSnapshots{}
	w := newSnapshotWriter(store.save)
	defer w.Close()

	for i := 1; i <= 100; i++ {
		w.Store(model.PersistedSession{TimerState: model.TimerState{CurrentTime: i}})
	}
	w.Flush()

	values := store.values()
	require.NotEmpty(t, values)
	assert.Equal(t, 100, values[len(values)-1])
	assert.IsIncreasing(t, values)
}

func TestSnapshotWriterCloseDrains(t *testing.T) {
	store := &savedSnapshots{err: errors.New("disk full")}
	w := newSnapshotWriter(store.save)

	w.Store(model.PersistedSession{TimerState: model.TimerState{CurrentTime: 7}})
	w.Close()
	w.Close()

	values := store.values()
	require.NotEmpty(t, values)
	assert.Equal(t, 7, values[len(values)-1])
}
