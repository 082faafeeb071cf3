package hearth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionGuardExclusive(t *testing.T) {
	arena := NewSessionArena(nil)
	s := arena.Create(context.Background(), "guild1", "view1", "user1", time.Minute)

	require.True(t, s.TryAcquire())
	assert.True(t, s.Locked())
	assert.False(t, s.TryAcquire(), "second acquire while held must fail")

	s.Release()
	assert.False(t, s.Locked())
	assert.True(t, s.TryAcquire())
	s.Release()
}

func TestSessionGuardConcurrent(t *testing.T) {
	arena := NewSessionArena(nil)
	s := arena.Create(context.Background(), "guild1", "view1", "user1", time.Minute)

	const attempts = 32
	var wg sync.WaitGroup
	var acquired sync.Map
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if s.TryAcquire() {
				acquired.Store(i, true)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	acquired.Range(func(any, any) bool {
		winners++
		return true
	})
	assert.Equal(t, 1, winners, "exactly one concurrent acquire wins")
}

func TestSessionCloseRunsCleanupOnce(t *testing.T) {
	arena := NewSessionArena(nil)
	s := arena.Create(context.Background(), "guild1", "view1", "user1", time.Minute)

	hub := NewCollectorHub(nil)
	c := hub.Open(
		CollectorOptions{
			ViewID:       "view1",
			AuthorFilter: authorIs("user1"),
			KindFilter:   anyAction,
			Timeout:      time.Minute,
		},
	)
	s.AddCollector(c)

	cleanups := 0
	s.SetCleanup(func(context.Context) { cleanups++ })

	s.Close(context.Background())
	s.Close(context.Background())

	assert.Equal(t, 1, cleanups)
	assert.True(t, s.Closed())
	assert.False(t, s.TryAcquire(), "closed session cannot be acquired")
	assert.Equal(t, CollectorStopped, <-c.Done())

	_, ok := arena.Get("guild1", "view1")
	assert.False(t, ok, "closed session leaves the arena")
	assert.Zero(t, arena.Len())
}

func TestSessionArenaCreateReplaces(t *testing.T) {
	arena := NewSessionArena(nil)
	ctx := context.Background()

	first := arena.Create(ctx, "guild1", "view1", "user1", time.Minute)
	second := arena.Create(ctx, "guild1", "view1", "user1", time.Minute)

	assert.True(t, first.Closed(), "replaced session is closed")
	assert.False(t, second.Closed())

	got, ok := arena.Get("guild1", "view1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, arena.Len())
}

func TestSessionArenaIsolation(t *testing.T) {
	arena := NewSessionArena(nil)
	ctx := context.Background()

	a := arena.Create(ctx, "guild1", "view1", "user1", time.Minute)
	b := arena.Create(ctx, "guild2", "view1", "user2", time.Minute)

	require.True(t, a.TryAcquire())
	assert.True(
		t, b.TryAcquire(),
		"one guild's guard never blocks another guild",
	)
	a.Release()
	b.Release()
	assert.Equal(t, 2, arena.Len())
}

func TestSessionReap(t *testing.T) {
	arena := NewSessionArena(nil)
	ctx := context.Background()

	expired := arena.Create(ctx, "guild1", "view1", "user1", -time.Second)
	live := arena.Create(ctx, "guild2", "view2", "user2", time.Hour)

	reaped := arena.Reap(ctx, time.Now())
	assert.Equal(t, 1, reaped)
	assert.True(t, expired.Closed())
	assert.False(t, live.Closed())
	assert.Equal(t, 1, arena.Len())
}

func TestSessionExtendDeadline(t *testing.T) {
	arena := NewSessionArena(nil)
	s := arena.Create(context.Background(), "guild1", "view1", "user1", time.Second)

	before := s.Deadline
	s.ExtendDeadline(time.Hour)
	assert.True(t, s.Deadline.After(before))
}

func TestSessionSnapshot(t *testing.T) {
	arena := NewSessionArena(nil)
	s := arena.Create(context.Background(), "guild1", "view1", "user1", time.Minute)
	require.True(t, s.TryAcquire())
	defer s.Release()

	infos := arena.Snapshot()
	require.Len(t, infos, 1)
	assert.Equal(t, "guild1", infos[0].GuildID)
	assert.Equal(t, "view1", infos[0].ViewID)
	assert.Equal(t, "user1", infos[0].AuthorID)
	assert.True(t, infos[0].Locked)
}
