package playback

import (
	"context"
	"log/slog"
	"sync"
)

// Recovery rebuilds guild playback state from persisted snapshots at startup
// and resumes playback where the saved voice channel can be rejoined. Guilds
// recover independently; one guild's connection failure never blocks another.
type Recovery struct {
	registry  *Registry
	store     Store
	scheduler *Scheduler
	connector Connector
}

func NewRecovery(registry *Registry, store Store, scheduler *Scheduler, connector Connector) *Recovery {
	return &Recovery{registry: registry, store: store, scheduler: scheduler, connector: connector}
}

func (r *Recovery) Run(ctx context.Context) error {
	snaps, err := r.store.LoadAllSnapshots(ctx)
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	for _, snap := range snaps {
		wg.Add(1)
		go func(snap Snapshot) {
			defer wg.Done()
			r.restore(ctx, snap)
		}(snap)
	}
	wg.Wait()
	return nil
}

func (r *Recovery) restore(ctx context.Context, snap Snapshot) {
	if len(snap.Queue) == 0 && snap.VoiceChannelID == "" {
		return
	}

	st := r.registry.GetOrCreate(snap.GuildID)
	st.mu.Lock()
	if st.current != nil || len(st.queue) > 0 {
		// a user command got here first; leave its state alone
		st.mu.Unlock()
		return
	}
	for _, item := range snap.Queue {
		st.queue = append(st.queue, Track{Name: item.Name, TempFile: item.TempFile})
	}
	st.voiceChannelID = snap.VoiceChannelID
	queued := len(st.queue) > 0
	st.mu.Unlock()

	if snap.VoiceChannelID == "" {
		slog.Info("recovered queue without voice target", "guildID", snap.GuildID, "queued", len(snap.Queue))
		return
	}
	if err := r.connector.EnsureVoiceConnection(snap.GuildID, snap.VoiceChannelID); err != nil {
		slog.Warn("voice rejoin failed, queue stays idle", "guildID", snap.GuildID, "channelID", snap.VoiceChannelID, "err", err)
		return
	}
	if !queued {
		return
	}
	if err := r.scheduler.Advance(ctx, snap.GuildID); err != nil {
		slog.Warn("recovery advance failed", "guildID", snap.GuildID, "err", err)
		return
	}
	slog.Info("resumed playback after restart", "guildID", snap.GuildID, "queued", len(snap.Queue))
}
