package ui

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"boombox/internal/playback"
)

// ProgressRenderer pushes progress embeds to a guild's now-playing message.
// It reports playback.ErrTargetGone when the message was deleted so the
// reporter stops tracking it.
type ProgressRenderer struct {
	session *discordgo.Session
	anim    atomic.Uint64
}

func NewProgressRenderer(s *discordgo.Session) *ProgressRenderer {
	return &ProgressRenderer{session: s}
}

func (r *ProgressRenderer) Render(target playback.DisplayRef, view playback.ProgressView) error {
	embed := BuildNowPlayingEmbed(view, int(r.anim.Add(1)))
	_, err := r.session.ChannelMessageEditEmbed(target.ChannelID, target.MessageID, embed)
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return playback.ErrTargetGone
	}
	return err
}
