package telegram

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePreservesPerUserOrder(t *testing.T) {
	q := NewQueue(4, 128, time.Second, logger.NewNopLogger())
	defer q.Close()

	var mu sync.Mutex
	got := map[int64][]int{}
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		for _, user := range []int64{1, 2, 3} {
			wg.Add(1)
			i, user := i, user
			require.NoError(t, q.Submit(user, func() {
				defer wg.Done()
				mu.Lock()
				got[user] = append(got[user], i)
				mu.Unlock()
			}))
		}
	}
	wg.Wait()

	for _, user := range []int64{1, 2, 3} {
		require.Len(t, got[user], 50)
		for i, v := range got[user] {
			assert.Equal(t, i, v)
		}
	}
}

func TestQueueUsersRunConcurrently(t *testing.T) {
	q := NewQueue(4, 8, time.Second, logger.NewNopLogger())
	defer q.Close()

	release := make(chan struct{})
	blocked := make(chan struct{})
	require.NoError(t, q.Submit(1, func() {
		close(blocked)
		<-release
	}))
	<-blocked

	done := make(chan struct{})
	require.NoError(t, q.Submit(2, func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("user 2 was blocked by user 1")
	}
	close(release)
}

func TestQueueIdleWorkersExit(t *testing.T) {
	q := NewQueue(1, 4, 20*time.Millisecond, logger.NewNopLogger())
	defer q.Close()

	var ran atomic.Int32
	require.NoError(t, q.Submit(7, func() { ran.Add(1) }))

	assert.Eventually(t, func() bool { return q.Active() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), ran.Load())

	// a retired worker is recreated on demand
	require.NoError(t, q.Submit(7, func() { ran.Add(1) }))
	assert.Eventually(t, func() bool { return ran.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestQueueBacklogAndClose(t *testing.T) {
	q := NewQueue(1, 1, time.Second, logger.NewNopLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, q.Submit(1, func() {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, q.Submit(1, func() {}))
	assert.ErrorIs(t, q.Submit(1, func() {}), ErrQueueFull)

	close(release)
	q.Close()
	assert.ErrorIs(t, q.Submit(1, func() {}), ErrQueueClosed)
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []map[string]interface{}
}

func (l *recordingLogger) Debug(string, string, map[string]interface{}) {}
func (l *recordingLogger) Info(string, string, map[string]interface{})  {}
func (l *recordingLogger) Warn(string, string, map[string]interface{})  {}
func (l *recordingLogger) Sync() error                                  { return nil }

func (l *recordingLogger) Error(module, _ string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	details["module"] = module
	l.errors = append(l.errors, details)
}

func TestQueueRecoversFromPanic(t *testing.T) {
	log := &recordingLogger{}
	q := NewQueue(1, 4, time.Second, log)
	defer q.Close()

	done := make(chan struct{})
	require.NoError(t, q.Submit(1, func() { panic("boom") }))
	require.NoError(t, q.Submit(1, func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.errors, 1)
	assert.Equal(t, "TELEGRAM", log.errors[0]["module"])
	assert.Equal(t, int64(1), log.errors[0]["user_id"])
	assert.Equal(t, "boom", log.errors[0]["error"])
}
