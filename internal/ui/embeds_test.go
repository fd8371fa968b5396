package ui

import (
	"strings"
	"testing"
	"time"

	"boombox/internal/playback"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		duration time.Duration
		want     string
	}{
		{"empty", 0, time.Minute, "[──────────]"},
		{"half", 30 * time.Second, time.Minute, "[█████─────]"},
		{"full", time.Minute, time.Minute, "[██████████]"},
		{"overrun clamps", 2 * time.Minute, time.Minute, "[██████████]"},
		{"unknown duration", 30 * time.Second, 0, "[──────────]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProgressBar(tt.elapsed, tt.duration, 10); got != tt.want {
				t.Fatalf("ProgressBar = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildNowPlayingEmbed(t *testing.T) {
	view := playback.ProgressView{
		TrackName:      "a_song.mp3",
		Elapsed:        30 * time.Second,
		Duration:       time.Minute,
		TotalRemaining: 90 * time.Second,
		QueueLen:       1,
	}
	embed := BuildNowPlayingEmbed(view, 0)
	if embed.Color != colorPlaying {
		t.Fatalf("color = %#x, want playing", embed.Color)
	}
	if !strings.Contains(embed.Fields[0].Value, `a\_song.mp3`) {
		t.Fatalf("track field = %q, want markdown escaped", embed.Fields[0].Value)
	}
	if !strings.Contains(embed.Fields[1].Value, "0:30 / 1:00") {
		t.Fatalf("progress field = %q", embed.Fields[1].Value)
	}
	if embed.Footer == nil || !strings.Contains(embed.Footer.Text, "1 queued") {
		t.Fatalf("footer = %+v", embed.Footer)
	}

	view.Paused = true
	if got := BuildNowPlayingEmbed(view, 0); got.Color != colorPaused {
		t.Fatalf("paused color = %#x", got.Color)
	}

	idle := BuildNowPlayingEmbed(playback.ProgressView{}, 0)
	if idle.Color != colorStopped {
		t.Fatalf("idle color = %#x", idle.Color)
	}
}

func TestBuildQueueEmbed(t *testing.T) {
	empty := BuildQueueEmbed(playback.View{})
	if !strings.Contains(empty.Description, "empty") {
		t.Fatalf("empty queue description = %q", empty.Description)
	}

	view := playback.View{
		Status:   playback.StatusPlaying,
		Current:  &playback.Track{Name: "a.mp3", Duration: time.Minute},
		Duration: time.Minute,
		Elapsed:  30 * time.Second,
		Queue: []playback.Track{
			{Name: "b.mp3", Duration: 30 * time.Second},
		},
	}
	embed := BuildQueueEmbed(view)
	if !strings.Contains(embed.Description, "a.mp3") || !strings.Contains(embed.Description, "**1.** b.mp3") {
		t.Fatalf("description = %q", embed.Description)
	}
	// 30s left of the current track plus 30s queued
	if !strings.Contains(embed.Description, "**1:00**") {
		t.Fatalf("description = %q, want 1:00 total remaining", embed.Description)
	}
}
