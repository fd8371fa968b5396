package playback

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const DefaultReportInterval = 2 * time.Second

// Reporter is the single background loop that refreshes every guild's
// progress display. It only ever takes a snapshot read of a guild's state;
// the outward render happens after the lock is released. A display that
// reports itself gone is dropped and never retried.
type Reporter struct {
	registry *Registry
	renderer Renderer
	interval time.Duration
}

func NewReporter(registry *Registry, renderer Renderer, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &Reporter{registry: registry, renderer: renderer, interval: interval}
}

func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick refreshes every tracked display once.
func (r *Reporter) Tick() {
	now := time.Now()
	for _, st := range r.registry.Guilds() {
		st.mu.Lock()
		if st.display == nil {
			st.mu.Unlock()
			continue
		}
		target := *st.display
		view := st.progressViewLocked(now)
		st.mu.Unlock()

		err := r.renderer.Render(target, view)
		switch {
		case err == nil:
		case errors.Is(err, ErrTargetGone):
			st.mu.Lock()
			if st.display != nil && *st.display == target {
				st.display = nil
			}
			st.mu.Unlock()
			slog.Debug("progress display dropped", "guildID", st.GuildID)
		default:
			slog.Debug("progress render failed", "guildID", st.GuildID, "err", err)
		}
	}
}
