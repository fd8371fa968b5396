package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"boombox/internal/playback"
	"boombox/internal/ui"
)

// Control actions wired to the buttons under the now-playing display.
const (
	controlToggle = "toggle"
	controlSkip   = "skip"
	controlLoop   = "loop"
	controlStop   = "stop"
)

// controlRow builds the button row under a now-playing message. The invoker's
// user id rides in the custom ids so only they can press the buttons.
func controlRow(ownerID string) []discordgo.MessageComponent {
	btn := func(action, emoji string, style discordgo.ButtonStyle) discordgo.Button {
		return discordgo.Button{
			Style:    style,
			Emoji:    &discordgo.ComponentEmoji{Name: emoji},
			CustomID: "np:" + action + ":" + ownerID,
		}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				btn(controlToggle, "⏯️", discordgo.PrimaryButton),
				btn(controlSkip, "⏭️", discordgo.SecondaryButton),
				btn(controlLoop, "🔂", discordgo.SecondaryButton),
				btn(controlStop, "⏹️", discordgo.DangerButton),
			},
		},
	}
}

func parseControlID(customID string) (action, ownerID string, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != "np" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func (h *CommandHandler) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	action, ownerID, ok := parseControlID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}
	if userIDOf(i) != ownerID {
		h.reply(s, i, "these controls belong to whoever opened the display", true)
		return
	}

	h.applyControl(i.GuildID, action)

	// refresh the pressed message in place; the reporter keeps it live after
	view := h.sched.Registry().GetOrCreate(i.GuildID).ProgressView()
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{ui.BuildNowPlayingEmbed(view, 0)},
			Components: controlRow(ownerID),
		},
	}); err != nil {
		slog.Warn("control update failed", "guildID", i.GuildID, "action", action, "err", err)
	}
}

// applyControl maps a button press onto the scheduler.
func (h *CommandHandler) applyControl(guildID, action string) {
	ctx := context.Background()
	switch action {
	case controlToggle:
		if err := h.sched.Pause(guildID); errors.Is(err, playback.ErrWrongState) {
			_ = h.sched.Resume(guildID)
		}
	case controlSkip:
		if err := h.sched.Skip(ctx, guildID); err != nil && !errors.Is(err, playback.ErrWrongState) {
			slog.Warn("control skip failed", "guildID", guildID, "err", err)
		}
	case controlLoop:
		h.sched.ToggleLoop(guildID)
	case controlStop:
		h.sched.Stop(ctx, guildID)
		h.voice.Disconnect(guildID)
	}
}
