package playback

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRenderer struct {
	mu    sync.Mutex
	calls []struct {
		target DisplayRef
		view   ProgressView
	}
	err error
}

func (r *fakeRenderer) Render(target DisplayRef, view ProgressView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		target DisplayRef
		view   ProgressView
	}{target, view})
	return r.err
}

func (r *fakeRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestReporterRendersAttachedDisplays(t *testing.T) {
	registry := NewRegistry()
	renderer := &fakeRenderer{}
	rep := NewReporter(registry, renderer, time.Second)

	st := registry.GetOrCreate("g1")
	st.mu.Lock()
	st.current = &Track{Name: "a.mp3", Duration: time.Minute}
	st.duration = time.Minute
	st.startedAt = time.Now().Add(-20 * time.Second)
	st.queue = []Track{{Name: "b.mp3", Duration: 30 * time.Second}}
	st.display = &DisplayRef{ChannelID: "c1", MessageID: "m1"}
	st.mu.Unlock()

	// a guild without a display is skipped
	registry.GetOrCreate("g2")

	rep.Tick()
	if got := renderer.count(); got != 1 {
		t.Fatalf("renders = %d, want 1", got)
	}
	call := renderer.calls[0]
	if call.target != (DisplayRef{ChannelID: "c1", MessageID: "m1"}) {
		t.Fatalf("target = %+v", call.target)
	}
	v := call.view
	if v.TrackName != "a.mp3" || v.Paused || v.QueueLen != 1 {
		t.Fatalf("view = %+v", v)
	}
	if v.Elapsed < 19*time.Second || v.Elapsed > 21*time.Second {
		t.Fatalf("elapsed = %v, want ~20s", v.Elapsed)
	}
	// remaining = (60s - elapsed) + 30s queued
	if v.TotalRemaining < 69*time.Second || v.TotalRemaining > 71*time.Second {
		t.Fatalf("total remaining = %v, want ~70s", v.TotalRemaining)
	}
}

func TestReporterFreezesElapsedWhenPaused(t *testing.T) {
	registry := NewRegistry()
	renderer := &fakeRenderer{}
	rep := NewReporter(registry, renderer, time.Second)

	st := registry.GetOrCreate("g1")
	now := time.Now()
	st.mu.Lock()
	st.current = &Track{Name: "a.mp3"}
	st.duration = time.Minute
	st.startedAt = now.Add(-30 * time.Second)
	st.pausedAt = now.Add(-10 * time.Second)
	st.display = &DisplayRef{ChannelID: "c1", MessageID: "m1"}
	st.mu.Unlock()

	rep.Tick()
	v := renderer.calls[0].view
	if !v.Paused {
		t.Fatal("view not marked paused")
	}
	if v.Elapsed < 19*time.Second || v.Elapsed > 21*time.Second {
		t.Fatalf("elapsed = %v, want frozen at ~20s", v.Elapsed)
	}
}

func TestReporterDropsGoneDisplay(t *testing.T) {
	registry := NewRegistry()
	renderer := &fakeRenderer{err: ErrTargetGone}
	rep := NewReporter(registry, renderer, time.Second)

	st := registry.GetOrCreate("g1")
	st.mu.Lock()
	st.current = &Track{Name: "a.mp3"}
	st.display = &DisplayRef{ChannelID: "c1", MessageID: "m1"}
	st.mu.Unlock()

	rep.Tick()
	st.mu.Lock()
	dropped := st.display == nil
	st.mu.Unlock()
	if !dropped {
		t.Fatal("display not dropped after ErrTargetGone")
	}

	rep.Tick()
	if got := renderer.count(); got != 1 {
		t.Fatalf("renders = %d, dropped display must not be retried", got)
	}
}

func TestReporterKeepsDisplayOnTransientError(t *testing.T) {
	registry := NewRegistry()
	renderer := &fakeRenderer{err: errors.New("rate limited")}
	rep := NewReporter(registry, renderer, time.Second)

	st := registry.GetOrCreate("g1")
	st.mu.Lock()
	st.current = &Track{Name: "a.mp3"}
	st.display = &DisplayRef{ChannelID: "c1", MessageID: "m1"}
	st.mu.Unlock()

	rep.Tick()
	rep.Tick()
	if got := renderer.count(); got != 2 {
		t.Fatalf("renders = %d, want retry on transient error", got)
	}
}
