package memory

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/quota"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/store"
)

func asset(name string, size int) store.DocumentAsset {
	return store.DocumentAsset{Kind: store.KindImage, Data: make([]byte, size), DisplayName: name}
}

func sumSizes(assets []store.DocumentAsset) int64 {
	var total int64
	for _, a := range assets {
		total += a.Size()
	}
	return total
}

func TestSessionRepository_CumulativeBytesInvariant(t *testing.T) {
	repo := NewSessionRepository(time.Hour, quota.NewGuard(1<<20))

	sizes := []int{10, 50 * 1024, 0, 300 * 1024, 7}
	for i, size := range sizes {
		require.NoError(t, repo.AppendAsset("u1", asset(fmt.Sprintf("f%d.png", i), size)))

		s := repo.GetOrCreate("u1")
		assert.Equal(t, sumSizes(s.Assets), s.CumulativeBytes)
	}

	s := repo.GetOrCreate("u1")
	assert.Len(t, s.Assets, len(sizes))
	assert.Equal(t, store.StateAccumulating, s.State)
}

func TestSessionRepository_QuotaRejectLeavesSessionUntouched(t *testing.T) {
	repo := NewSessionRepository(time.Hour, quota.NewGuard(1<<20))
	repo.AppendText("u1", "what is this?")
	require.NoError(t, repo.AppendAsset("u1", asset("a.png", 100)))
	before := repo.GetOrCreate("u1")

	err := repo.AppendAsset("u1", asset("big.pdf", 2<<20))

	var exceeded *quota.ExceededError
	require.True(t, errors.As(err, &exceeded))
	after := repo.GetOrCreate("u1")
	assert.Equal(t, before.CumulativeBytes, after.CumulativeBytes)
	assert.Equal(t, before.Texts, after.Texts)
	assert.Len(t, after.Assets, 1)
}

func TestSessionRepository_RejectAtExactCap(t *testing.T) {
	repo := NewSessionRepository(time.Hour, quota.NewGuard(1000))
	require.NoError(t, repo.AppendAsset("u1", asset("a.png", 500)))

	assert.Error(t, repo.AppendAsset("u1", asset("b.png", 500)))
	assert.NoError(t, repo.AppendAsset("u1", asset("c.png", 499)))
	assert.Equal(t, int64(999), repo.GetOrCreate("u1").CumulativeBytes)
}

func TestSessionRepository_DrainResetsAndPreservesOrder(t *testing.T) {
	repo := NewSessionRepository(time.Hour, quota.NewGuard(0))
	repo.AppendText("u1", "first")
	require.NoError(t, repo.AppendAsset("u1", asset("one.png", 1)))
	repo.AppendText("u1", "second")
	require.NoError(t, repo.AppendAsset("u1", asset("two.pdf", 2)))

	batch := repo.Drain("u1")

	assert.Equal(t, []string{"first", "second"}, batch.Texts)
	require.Len(t, batch.Assets, 2)
	assert.Equal(t, "one.png", batch.Assets[0].DisplayName)
	assert.Equal(t, "two.pdf", batch.Assets[1].DisplayName)
	assert.Equal(t, int64(3), batch.Bytes)

	s := repo.GetOrCreate("u1")
	assert.Empty(t, s.Texts)
	assert.Empty(t, s.Assets)
	assert.Zero(t, s.CumulativeBytes)
	assert.Equal(t, store.StateIdle, s.State)
}

func TestSessionRepository_ResetFromAnyState(t *testing.T) {
	repo := NewSessionRepository(time.Hour, quota.NewGuard(0))

	dropped := repo.Reset("fresh")
	assert.True(t, dropped.IsEmpty())

	repo.AppendText("u1", "hello")
	require.NoError(t, repo.AppendAsset("u1", asset("a.png", 10)))
	_ = repo.WithLock("u1", func(tx *Tx) error {
		tx.SetState(store.StateProcessing)
		return nil
	})

	dropped = repo.Reset("u1")
	assert.Len(t, dropped.Texts, 1)
	assert.Len(t, dropped.Assets, 1)

	s := repo.GetOrCreate("u1")
	assert.Equal(t, store.StateIdle, s.State)
	assert.Empty(t, s.Texts)
	assert.Empty(t, s.Assets)
}

func TestSessionRepository_ConcurrentDrainNeverDuplicates(t *testing.T) {
	repo := NewSessionRepository(time.Hour, quota.NewGuard(1<<30))

	const appends = 200
	var wg sync.WaitGroup
	var mu sync.Mutex
	drained := 0

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < appends; i++ {
			_ = repo.AppendAsset("u1", asset(fmt.Sprintf("%d.png", i), 1))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < appends; i++ {
			b := repo.Drain("u1")
			mu.Lock()
			drained += len(b.Assets)
			mu.Unlock()
		}
	}()
	wg.Wait()

	left := repo.Drain("u1")
	assert.Equal(t, appends, drained+len(left.Assets))
}

func TestSessionRepository_UsersAreIsolated(t *testing.T) {
	repo := NewSessionRepository(time.Hour, quota.NewGuard(1<<30))

	var wg sync.WaitGroup
	for _, user := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				repo.AppendText(user, user)
				_ = repo.AppendAsset(user, asset(user+".png", 3))
			}
		}(user)
	}
	wg.Wait()

	for _, user := range []string{"alice", "bob"} {
		s := repo.GetOrCreate(user)
		require.Len(t, s.Texts, 100)
		for _, text := range s.Texts {
			assert.Equal(t, user, text)
		}
		for _, a := range s.Assets {
			assert.Equal(t, user+".png", a.DisplayName)
		}
		assert.Equal(t, int64(300), s.CumulativeBytes)
	}
	assert.Equal(t, 2, repo.Len())
}

func TestSessionRepository_IdleTTLTeardown(t *testing.T) {
	repo := NewSessionRepository(50*time.Millisecond, quota.NewGuard(0))
	repo.AppendText("u1", "stale")

	time.Sleep(120 * time.Millisecond)

	s := repo.GetOrCreate("u1")
	assert.Empty(t, s.Texts)
}

func TestSessionRepository_ProcessingVisibleWithoutLock(t *testing.T) {
	repo := NewSessionRepository(time.Hour, quota.NewGuard(0))
	assert.False(t, repo.Processing("u1"))
	assert.Equal(t, 0, repo.Len())

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = repo.WithLock("u1", func(tx *Tx) error {
			tx.SetState(store.StateProcessing)
			close(inside)
			<-release
			tx.SetState(store.StateIdle)
			return nil
		})
	}()

	<-inside
	assert.True(t, repo.Processing("u1"))
	close(release)
	<-done
	assert.False(t, repo.Processing("u1"))
}

func TestSessionRepository_LockSurvivesIdleExpiry(t *testing.T) {
	repo := NewSessionRepository(50*time.Millisecond, quota.NewGuard(0))

	var inside atomic.Int32
	var overlapped atomic.Bool
	enter := func() {
		if inside.Add(1) > 1 {
			overlapped.Store(true)
		}
	}

	firstIn := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = repo.WithLock("u1", func(tx *Tx) error {
			enter()
			tx.AppendText("first")
			tx.SetState(store.StateProcessing)
			close(firstIn)
			time.Sleep(400 * time.Millisecond)
			tx.SetState(store.StateIdle)
			inside.Add(-1)
			return nil
		})
	}()

	<-firstIn
	// several janitor sweeps pass while the first holder is still inside
	time.Sleep(200 * time.Millisecond)
	assert.True(t, repo.Processing("u1"))

	var seen []string
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = repo.WithLock("u1", func(tx *Tx) error {
			enter()
			seen = tx.Snapshot().Texts
			inside.Add(-1)
			return nil
		})
	}()
	wg.Wait()

	assert.False(t, overlapped.Load())
	assert.Equal(t, []string{"first"}, seen)

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, repo.GetOrCreate("u1").Texts)
}
