package playback

import (
	"sync"
	"time"
)

type Status int

const (
	StatusPlaying Status = iota
	StatusPaused
	StatusIdle
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	}
	return "idle"
}

// GuildState is the playback record for one guild. Every mutation happens
// under mu; the state machine is: idle (current == nil), playing (current set,
// pausedAt zero), paused (current set, pausedAt set).
type GuildState struct {
	GuildID string

	mu             sync.Mutex
	queue          []Track
	current        *Track
	startedAt      time.Time
	pausedAt       time.Time
	duration       time.Duration
	loopCurrent    bool
	display        *DisplayRef
	voiceChannelID string

	// gen increments on every transition that changes what is (or should be)
	// streaming. A completion callback carrying an older gen is stale and
	// settles as a no-op.
	gen uint64
}

func newGuildState(guildID string) *GuildState {
	return &GuildState{GuildID: guildID}
}

func (st *GuildState) statusLocked() Status {
	switch {
	case st.current == nil:
		return StatusIdle
	case !st.pausedAt.IsZero():
		return StatusPaused
	}
	return StatusPlaying
}

func (st *GuildState) Status() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.statusLocked()
}

// elapsedLocked is valid while a track is current; clamped to [0, duration]
// when the duration is known.
func (st *GuildState) elapsedLocked(now time.Time) time.Duration {
	var e time.Duration
	if !st.pausedAt.IsZero() {
		e = st.pausedAt.Sub(st.startedAt)
	} else {
		e = now.Sub(st.startedAt)
	}
	if e < 0 {
		e = 0
	}
	if st.duration > 0 && e > st.duration {
		e = st.duration
	}
	return e
}

func (st *GuildState) snapshotLocked() Snapshot {
	snap := Snapshot{
		GuildID:        st.GuildID,
		VoiceChannelID: st.voiceChannelID,
	}
	if st.current != nil {
		snap.CurrentTrack = st.current.Name
	}
	for _, t := range st.queue {
		snap.Queue = append(snap.Queue, QueueItem{Name: t.Name, TempFile: t.TempFile})
	}
	return snap
}

// View is a consistent copy of the fields command handlers and embeds need.
type View struct {
	Status   Status
	Current  *Track
	Queue    []Track
	Elapsed  time.Duration
	Duration time.Duration
	Loop     bool
}

func (st *GuildState) View() View {
	st.mu.Lock()
	defer st.mu.Unlock()

	v := View{
		Status:   st.statusLocked(),
		Duration: st.duration,
		Loop:     st.loopCurrent,
	}
	if st.current != nil {
		cur := *st.current
		v.Current = &cur
		v.Elapsed = st.elapsedLocked(time.Now())
	}
	v.Queue = make([]Track, len(st.queue))
	copy(v.Queue, st.queue)
	return v
}

// progressViewLocked computes the render input for a progress display.
// Caller must hold st.mu.
func (st *GuildState) progressViewLocked(now time.Time) ProgressView {
	view := ProgressView{
		Loop:     st.loopCurrent,
		QueueLen: len(st.queue),
	}
	var remaining time.Duration
	if st.current != nil {
		view.TrackName = st.current.Name
		view.Duration = st.duration
		view.Paused = !st.pausedAt.IsZero()
		view.Elapsed = st.elapsedLocked(now)
		if st.duration > view.Elapsed {
			remaining = st.duration - view.Elapsed
		}
	}
	for _, t := range st.queue {
		remaining += t.Duration
	}
	view.TotalRemaining = remaining
	return view
}

// ProgressView is the single source for progress rendering, shared by the
// reporter loop and the now-playing command.
func (st *GuildState) ProgressView() ProgressView {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.progressViewLocked(time.Now())
}

// SetDisplay attaches (or detaches, with nil) the message the progress
// reporter refreshes for this guild.
func (st *GuildState) SetDisplay(ref *DisplayRef) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.display = ref
}

func (st *GuildState) VoiceChannel() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.voiceChannelID
}

// Registry holds one GuildState per guild, created lazily on first use.
type Registry struct {
	mu     sync.Mutex
	guilds map[string]*GuildState
}

func NewRegistry() *Registry {
	return &Registry{guilds: make(map[string]*GuildState)}
}

func (r *Registry) GetOrCreate(guildID string) *GuildState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.guilds[guildID]; ok {
		return st
	}
	st := newGuildState(guildID)
	r.guilds[guildID] = st
	return st
}

func (r *Registry) peek(guildID string) *GuildState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.guilds[guildID]
}

// Guilds returns a snapshot of all known guild states.
func (r *Registry) Guilds() []*GuildState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*GuildState, 0, len(r.guilds))
	for _, st := range r.guilds {
		out = append(out, st)
	}
	return out
}
