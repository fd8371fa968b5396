package playback

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"
)

// Scheduler owns the per-guild playback state machine: it pops the queue,
// asks the transport to start a stream, and advances on completion. All
// mutations to a guild's record run under that guild's lock; calls out to the
// library and the transport happen outside the critical section.
type Scheduler struct {
	registry  *Registry
	store     Store
	library   Library
	transport Transport
}

func NewScheduler(registry *Registry, store Store, library Library, transport Transport) *Scheduler {
	return &Scheduler{
		registry:  registry,
		store:     store,
		library:   library,
		transport: transport,
	}
}

func (s *Scheduler) Registry() *Registry { return s.registry }

// persistLocked writes the guild's current snapshot. Caller must hold st.mu.
// A write failure is logged and never aborts the in-memory mutation.
func (s *Scheduler) persistLocked(ctx context.Context, st *GuildState) {
	if err := s.store.SaveSnapshot(ctx, st.snapshotLocked()); err != nil {
		slog.Error("snapshot write failed", "guildID", st.GuildID, "err", err)
	}
}

// Enqueue appends a track to the guild's queue and, if the guild was idle,
// immediately advances. Track existence is checked at dequeue time, not here;
// the duration probe is best effort and only feeds queue displays.
func (s *Scheduler) Enqueue(ctx context.Context, guildID, name string) (int, error) {
	return s.enqueue(ctx, guildID, Track{Name: name})
}

// EnqueueEphemeral queues a track backed by a temporary file (an upload
// played directly); the file is removed once the track leaves the queue.
func (s *Scheduler) EnqueueEphemeral(ctx context.Context, guildID, name, path string) (int, error) {
	return s.enqueue(ctx, guildID, Track{Name: name, Path: path, TempFile: path})
}

func (s *Scheduler) enqueue(ctx context.Context, guildID string, track Track) (int, error) {
	if track.Duration == 0 {
		path := track.Path
		if path == "" {
			if p, err := s.library.Resolve(track.Name); err == nil {
				path = p
			}
		}
		if path != "" {
			track.Duration = s.library.Duration(path)
		}
	}

	st := s.registry.GetOrCreate(guildID)
	st.mu.Lock()
	st.queue = append(st.queue, track)
	n := len(st.queue)
	idle := st.current == nil
	s.persistLocked(ctx, st)
	st.mu.Unlock()

	if idle {
		if err := s.Advance(ctx, guildID); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Advance pops the front of the queue, makes it current and starts streaming
// it. With an empty queue the guild settles into idle. Tracks whose file no
// longer resolves are skipped silently; a transport failure other than a
// missing voice connection counts as an errored playback and also advances.
func (s *Scheduler) Advance(ctx context.Context, guildID string) error {
	st := s.registry.GetOrCreate(guildID)
	for {
		st.mu.Lock()
		if st.current != nil {
			// another trigger already produced a current track
			st.mu.Unlock()
			return nil
		}
		if len(st.queue) == 0 {
			st.duration = 0
			st.startedAt, st.pausedAt = time.Time{}, time.Time{}
			st.gen++
			s.persistLocked(ctx, st)
			st.mu.Unlock()
			return nil
		}
		next := st.queue[0]
		st.queue = st.queue[1:]
		st.current = &next
		st.gen++
		gen := st.gen
		s.persistLocked(ctx, st)
		st.mu.Unlock()

		// Resolve and probe without holding the lock.
		path := next.Path
		var resolveErr error
		if path == "" {
			path, resolveErr = s.library.Resolve(next.Name)
		} else if _, err := os.Stat(path); err != nil {
			resolveErr = err
		}
		if resolveErr != nil {
			slog.Info("skipping unresolvable track", "guildID", guildID, "track", next.Name, "err", resolveErr)
			if !s.clearCurrent(st, gen) {
				return nil
			}
			continue
		}
		dur := s.library.Duration(path)

		st.mu.Lock()
		if st.gen != gen {
			// superseded by a concurrent stop/skip
			st.mu.Unlock()
			return nil
		}
		st.current.Path = path
		st.current.Duration = dur
		st.duration = dur
		st.startedAt = time.Now()
		st.pausedAt = time.Time{}
		s.persistLocked(ctx, st)
		st.mu.Unlock()

		err := s.transport.StartStream(guildID, path, func(outcome Outcome) {
			s.onPlaybackComplete(guildID, gen, outcome)
		})
		if err == nil {
			slog.Info("playback started", "guildID", guildID, "track", next.Name, "duration", dur)
			return nil
		}
		if errors.Is(err, ErrNoConnection) {
			st.mu.Lock()
			if st.gen == gen {
				st.queue = append([]Track{next}, st.queue...)
				st.current = nil
				st.duration = 0
				st.startedAt, st.pausedAt = time.Time{}, time.Time{}
				s.persistLocked(ctx, st)
			}
			st.mu.Unlock()
			return ErrNoConnection
		}
		slog.Warn("stream start failed, trying next track", "guildID", guildID, "track", next.Name, "err", err)
		if !s.clearCurrent(st, gen) {
			return nil
		}
	}
}

// clearCurrent drops the current track after a failed start, keeping its
// temp file cleanup. Reports false when the transition was superseded.
func (s *Scheduler) clearCurrent(st *GuildState, gen uint64) bool {
	st.mu.Lock()
	if st.gen != gen {
		st.mu.Unlock()
		return false
	}
	var temp string
	if st.current != nil {
		temp = st.current.TempFile
	}
	st.current = nil
	st.duration = 0
	st.mu.Unlock()
	removeTemp(st.GuildID, temp)
	return true
}

// onPlaybackComplete is invoked by the transport, exactly once per attempt,
// on whatever goroutine the transport uses. gen binds the callback to the
// attempt it belongs to: if a stop or skip already moved the state machine
// on, the callback observes the mismatch and does nothing.
func (s *Scheduler) onPlaybackComplete(guildID string, gen uint64, outcome Outcome) {
	st := s.registry.GetOrCreate(guildID)
	st.mu.Lock()
	if st.gen != gen || st.current == nil {
		st.mu.Unlock()
		return
	}
	finished := *st.current
	st.current = nil
	st.duration = 0
	st.startedAt, st.pausedAt = time.Time{}, time.Time{}
	loop := st.loopCurrent && outcome == OutcomeFinished
	if loop {
		st.queue = append([]Track{finished}, st.queue...)
	}
	st.mu.Unlock()

	slog.Debug("playback complete", "guildID", guildID, "track", finished.Name, "outcome", outcome.String())
	if !loop && finished.TempFile != "" {
		removeTemp(guildID, finished.TempFile)
	}

	if err := s.Advance(context.Background(), guildID); err != nil && !errors.Is(err, ErrNoConnection) {
		slog.Warn("advance after completion failed", "guildID", guildID, "err", err)
	}
}

// Pause suspends the current stream and freezes elapsed-time accounting.
func (s *Scheduler) Pause(guildID string) error {
	st := s.registry.GetOrCreate(guildID)
	st.mu.Lock()
	if st.current == nil || !st.pausedAt.IsZero() {
		st.mu.Unlock()
		return ErrWrongState
	}
	st.pausedAt = time.Now()
	st.mu.Unlock()

	s.transport.PauseStream(guildID)
	return nil
}

// Resume continues a paused stream, shifting startedAt forward by the pause
// duration so elapsed = now - startedAt stays correct.
func (s *Scheduler) Resume(guildID string) error {
	st := s.registry.GetOrCreate(guildID)
	st.mu.Lock()
	if st.current == nil || st.pausedAt.IsZero() {
		st.mu.Unlock()
		return ErrWrongState
	}
	st.startedAt = st.startedAt.Add(time.Since(st.pausedAt))
	st.pausedAt = time.Time{}
	st.mu.Unlock()

	s.transport.ResumeStream(guildID)
	return nil
}

// Skip discards the current track and advances. The generation bump makes
// both the stopped stream's completion callback and any stream start still in
// preparation for the skipped track settle as no-ops, so a skip issued before
// the stream came up does not get lost. On an idle guild with queued tracks
// it advances directly.
func (s *Scheduler) Skip(ctx context.Context, guildID string) error {
	st := s.registry.GetOrCreate(guildID)
	st.mu.Lock()
	if st.current == nil {
		queued := len(st.queue) > 0
		st.mu.Unlock()
		if queued {
			return s.Advance(ctx, guildID)
		}
		return ErrWrongState
	}
	skipped := *st.current
	st.current = nil
	st.duration = 0
	st.startedAt, st.pausedAt = time.Time{}, time.Time{}
	st.gen++
	s.persistLocked(ctx, st)
	st.mu.Unlock()

	s.transport.StopStream(guildID)
	if skipped.TempFile != "" {
		removeTemp(guildID, skipped.TempFile)
	}
	return s.Advance(ctx, guildID)
}

// Stop clears the queue and the current track, stops the stream if one is
// active, and deletes any ephemeral upload files the queue referenced. A
// completion callback already in flight for the stopped track finds the
// generation moved on and settles as a no-op.
func (s *Scheduler) Stop(ctx context.Context, guildID string) {
	st := s.registry.GetOrCreate(guildID)
	st.mu.Lock()
	var temps []string
	for _, t := range st.queue {
		if t.TempFile != "" {
			temps = append(temps, t.TempFile)
		}
	}
	if st.current != nil && st.current.TempFile != "" {
		temps = append(temps, st.current.TempFile)
	}
	active := st.current != nil
	st.queue = nil
	st.current = nil
	st.duration = 0
	st.startedAt, st.pausedAt = time.Time{}, time.Time{}
	st.loopCurrent = false
	st.gen++
	s.persistLocked(ctx, st)
	st.mu.Unlock()

	if active {
		s.transport.StopStream(guildID)
	}
	for _, f := range temps {
		removeTemp(guildID, f)
	}
}

// ClearQueue empties the queue without touching the current track.
func (s *Scheduler) ClearQueue(ctx context.Context, guildID string) int {
	st := s.registry.GetOrCreate(guildID)
	st.mu.Lock()
	var temps []string
	for _, t := range st.queue {
		if t.TempFile != "" {
			temps = append(temps, t.TempFile)
		}
	}
	n := len(st.queue)
	st.queue = nil
	s.persistLocked(ctx, st)
	st.mu.Unlock()

	for _, f := range temps {
		removeTemp(guildID, f)
	}
	return n
}

// ToggleLoop flips loop-current. While set, a finished track is re-inserted
// at the front of the queue, ahead of anything queued meanwhile.
func (s *Scheduler) ToggleLoop(guildID string) bool {
	st := s.registry.GetOrCreate(guildID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.loopCurrent = !st.loopCurrent
	return st.loopCurrent
}

// SetVoiceTarget records which voice channel this guild's audio routes
// through, so recovery can rejoin it after a restart.
func (s *Scheduler) SetVoiceTarget(ctx context.Context, guildID, channelID string) {
	st := s.registry.GetOrCreate(guildID)
	st.mu.Lock()
	if st.voiceChannelID != channelID {
		st.voiceChannelID = channelID
		s.persistLocked(ctx, st)
	}
	st.mu.Unlock()
}

// SetDisplay attaches the progress display target for a guild.
func (s *Scheduler) SetDisplay(guildID string, ref *DisplayRef) {
	s.registry.GetOrCreate(guildID).SetDisplay(ref)
}

func removeTemp(guildID, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("temp file removal failed", "guildID", guildID, "path", path, "err", err)
	}
}
