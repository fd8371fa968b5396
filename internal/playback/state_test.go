package playback

import (
	"sync"
	"testing"
	"time"
)

func TestRegistryGetOrCreateIsStable(t *testing.T) {
	r := NewRegistry()
	a := r.GetOrCreate("g1")
	b := r.GetOrCreate("g1")
	if a != b {
		t.Fatal("GetOrCreate returned distinct states for the same guild")
	}
	if r.peek("g2") != nil {
		t.Fatal("peek created a state")
	}

	var wg sync.WaitGroup
	states := make([]*GuildState, 16)
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = r.GetOrCreate("g3")
		}(i)
	}
	wg.Wait()
	for _, st := range states {
		if st != states[0] {
			t.Fatal("concurrent GetOrCreate returned distinct states")
		}
	}
}

func TestStatusFollowsStateFields(t *testing.T) {
	st := newGuildState("g1")
	if got := st.Status(); got != StatusIdle {
		t.Fatalf("status = %v, want idle", got)
	}

	st.mu.Lock()
	st.current = &Track{Name: "a.mp3"}
	st.startedAt = time.Now()
	st.mu.Unlock()
	if got := st.Status(); got != StatusPlaying {
		t.Fatalf("status = %v, want playing", got)
	}

	st.mu.Lock()
	st.pausedAt = time.Now()
	st.mu.Unlock()
	if got := st.Status(); got != StatusPaused {
		t.Fatalf("status = %v, want paused", got)
	}
}

func TestElapsedClampedToDuration(t *testing.T) {
	st := newGuildState("g1")
	now := time.Now()
	st.mu.Lock()
	st.current = &Track{Name: "a.mp3"}
	st.startedAt = now.Add(-2 * time.Minute)
	st.duration = time.Minute
	st.mu.Unlock()

	if got := st.View().Elapsed; got != time.Minute {
		t.Fatalf("elapsed = %v, want clamped to 1m", got)
	}

	st.mu.Lock()
	st.startedAt = now.Add(time.Minute) // clock skew
	st.mu.Unlock()
	if got := st.View().Elapsed; got != 0 {
		t.Fatalf("elapsed = %v, want clamped to 0", got)
	}
}

func TestViewIsACopy(t *testing.T) {
	st := newGuildState("g1")
	st.mu.Lock()
	st.current = &Track{Name: "a.mp3"}
	st.queue = []Track{{Name: "b.mp3"}}
	st.mu.Unlock()

	v := st.View()
	v.Current.Name = "mutated"
	v.Queue[0].Name = "mutated"

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.current.Name != "a.mp3" || st.queue[0].Name != "b.mp3" {
		t.Fatal("View leaked internal state")
	}
}

func TestProgressViewMath(t *testing.T) {
	st := newGuildState("g1")
	st.mu.Lock()
	st.current = &Track{Name: "a.mp3"}
	st.duration = time.Minute
	st.startedAt = time.Now().Add(-20 * time.Second)
	st.queue = []Track{{Name: "b.mp3", Duration: 30 * time.Second}}
	st.loopCurrent = true
	st.mu.Unlock()

	v := st.ProgressView()
	if v.TrackName != "a.mp3" || v.Paused || !v.Loop || v.QueueLen != 1 {
		t.Fatalf("view = %+v", v)
	}
	if v.Elapsed < 19*time.Second || v.Elapsed > 21*time.Second {
		t.Fatalf("elapsed = %v, want ~20s", v.Elapsed)
	}
	// (60s - elapsed) of the current track plus 30s queued
	if v.TotalRemaining < 69*time.Second || v.TotalRemaining > 71*time.Second {
		t.Fatalf("total remaining = %v, want ~70s", v.TotalRemaining)
	}

	idle := newGuildState("g2").ProgressView()
	if idle.TrackName != "" || idle.TotalRemaining != 0 || idle.QueueLen != 0 {
		t.Fatalf("idle view = %+v", idle)
	}
}

func TestSnapshotReflectsQueueAndCurrent(t *testing.T) {
	st := newGuildState("g1")
	st.mu.Lock()
	st.current = &Track{Name: "a.mp3"}
	st.queue = []Track{{Name: "b.mp3"}, {Name: "up.mp3", TempFile: "/tmp/up"}}
	st.voiceChannelID = "vc1"
	snap := st.snapshotLocked()
	st.mu.Unlock()

	if snap.GuildID != "g1" || snap.CurrentTrack != "a.mp3" || snap.VoiceChannelID != "vc1" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Queue) != 2 || snap.Queue[1].TempFile != "/tmp/up" {
		t.Fatalf("snapshot queue = %+v", snap.Queue)
	}
}
