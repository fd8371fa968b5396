package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"boombox/internal/library"
	"boombox/internal/playback"
	"boombox/internal/repository"
	"boombox/internal/utils"
)

const (
	colorPlaying = 0x1DB954
	colorPaused  = 0xD6A200
	colorStopped = 0xE0245E

	progressBarWidth = 22
)

var titleAnim = []string{"🎵", "🎶", "🎧"}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

// ProgressBar renders a fixed-width elapsed/total bar like [████──────].
func ProgressBar(elapsed, duration time.Duration, width int) string {
	if width <= 0 {
		width = progressBarWidth
	}
	if duration <= 0 {
		return "[" + strings.Repeat("─", width) + "]"
	}
	pos := int(float64(width) * float64(elapsed) / float64(duration))
	if pos < 0 {
		pos = 0
	}
	if pos > width {
		pos = width
	}
	return "[" + strings.Repeat("█", pos) + strings.Repeat("─", width-pos) + "]"
}

// BuildNowPlayingEmbed renders the live progress display for a guild.
func BuildNowPlayingEmbed(view playback.ProgressView, animIndex int) *discordgo.MessageEmbed {
	if view.TrackName == "" {
		return &discordgo.MessageEmbed{
			Title:       "Nothing playing",
			Description: "Use `/play` to start a track.",
			Color:       colorStopped,
		}
	}

	color := colorPlaying
	if view.Paused {
		color = colorPaused
	}
	anim := titleAnim[animIndex%len(titleAnim)]
	bar := ProgressBar(view.Elapsed, view.Duration, progressBarWidth)
	loop := ""
	if view.Loop {
		loop = " 🔂"
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s Now playing%s", anim, loop),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Track", Value: utils.EscapeMd(view.TrackName), Inline: false},
			{
				Name: "Progress",
				Value: fmt.Sprintf("`%s / %s`\n`%s`",
					utils.PrettyTime(seconds(view.Elapsed)),
					utils.PrettyTime(seconds(view.Duration)),
					bar),
				Inline: false,
			},
		},
	}
	if view.QueueLen > 0 || view.TotalRemaining > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d queued • %s remaining", view.QueueLen, utils.PrettyTime(seconds(view.TotalRemaining))),
		}
	}
	return embed
}

// BuildQueueEmbed renders the current queue with per-track and total durations.
func BuildQueueEmbed(view playback.View) *discordgo.MessageEmbed {
	if view.Current == nil && len(view.Queue) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "Queue",
			Description: "The queue is empty.",
			Color:       colorStopped,
		}
	}

	var b strings.Builder
	var total time.Duration
	if view.Current != nil {
		fmt.Fprintf(&b, "▶️ **%s** (%s)\n\n", utils.EscapeMd(view.Current.Name), utils.PrettyTime(seconds(view.Current.Duration)))
		total += view.Duration - view.Elapsed
	}
	for i, t := range view.Queue {
		fmt.Fprintf(&b, "**%d.** %s (%s)\n", i+1, utils.EscapeMd(t.Name), utils.PrettyTime(seconds(t.Duration)))
		total += t.Duration
	}
	fmt.Fprintf(&b, "\n⏱️ Total remaining: **%s**", utils.PrettyTime(seconds(total)))

	return &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: b.String(),
		Color:       colorPlaying,
	}
}

// BuildLibraryEmbed lists the available audio files.
func BuildLibraryEmbed(entries []library.Entry) *discordgo.MessageEmbed {
	if len(entries) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "Library",
			Description: "No audio files found. Use `/upload` to add some.",
			Color:       colorStopped,
		}
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "**%d.** %s (%s)\n", i+1, utils.EscapeMd(e.Name), utils.PrettyTime(seconds(e.Duration)))
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Library (%d files)", len(entries)),
		Description: b.String(),
		Color:       colorPlaying,
	}
}

// BuildPlaylistsEmbed lists a guild's saved playlists.
func BuildPlaylistsEmbed(playlists []repository.Playlist) *discordgo.MessageEmbed {
	if len(playlists) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "Playlists",
			Description: "No playlists saved.",
			Color:       colorStopped,
		}
	}
	var b strings.Builder
	for _, pl := range playlists {
		fmt.Fprintf(&b, "• **%s** (%d tracks)\n", utils.EscapeMd(pl.Name), pl.TrackCount)
	}
	return &discordgo.MessageEmbed{
		Title:       "Playlists",
		Description: b.String(),
		Color:       colorPlaying,
	}
}
