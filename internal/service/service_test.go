package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebuilder/internal/service"
)

func TestRunningGuard_OnePerPage(t *testing.T) {
	var g service.ExportedRunningGuard

	require.True(t, g.TryLock("page-home"))
	assert.False(t, g.TryLock("page-home"), "second publish of the same page is refused")
	require.True(t, g.TryLock("page-sale"))
	assert.Equal(t, []string{"page-home", "page-sale"}, g.Running())

	g.Unlock("page-home")
	assert.Equal(t, []string{"page-sale"}, g.Running())
	assert.True(t, g.TryLock("page-home"), "released pages can publish again")

	g.Unlock("page-home")
	g.Unlock("page-sale")
	assert.Empty(t, g.Running())
}

func TestRunningGuard_ConcurrentTryLock(t *testing.T) {
	var g service.ExportedRunningGuard
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryLock("page-home") {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
	g.Unlock("page-home")
}

func TestRunningGuard_WaitAllReturnsOnRelease(t *testing.T) {
	var g service.ExportedRunningGuard
	require.True(t, g.TryLock("page-home"))

	time.AfterFunc(20*time.Millisecond, func() { g.Unlock("page-home") })

	start := time.Now()
	g.WaitAll(context.Background())
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunningGuard_WaitAllHonoursContext(t *testing.T) {
	var g service.ExportedRunningGuard
	require.True(t, g.TryLock("page-stuck"))
	defer g.Unlock("page-stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	g.WaitAll(ctx)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestMockEmitter_Named(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, service.EventBlockSaved, map[string]any{"id": "hero"})
	m.Emit(ctx, service.EventDocumentChanged, map[string]any{"pageId": "p1"})
	m.Emit(ctx, service.EventBlockSaved, map[string]any{"id": "cta"})

	require.Len(t, m.Events, 3)
	saved := m.Named(service.EventBlockSaved)
	require.Len(t, saved, 2)
	assert.Equal(t, "cta", saved[1].Data.(map[string]any)["id"])
	assert.Empty(t, m.Named(service.EventPagePublished))
}

func TestLogEmitter_DoesNotPanic(t *testing.T) {
	e := service.NewLogEmitter()
	assert.NotPanics(t, func() {
		e.Emit(context.Background(), service.EventInjectionSettled, map[string]any{"state": "done"})
		e.Emit(context.Background(), service.EventDataSourceChanged, nil)
	})
}
