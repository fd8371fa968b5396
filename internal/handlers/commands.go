package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"boombox/internal/config"
	"boombox/internal/library"
	"boombox/internal/playback"
	"boombox/internal/repository"
	"boombox/internal/stream"
	"boombox/internal/ui"
	"boombox/internal/utils"
)

type CommandHandler struct {
	cfg   *config.Config
	repo  *repository.Repo
	lib   *library.Library
	sched *playback.Scheduler
	voice *stream.Manager
}

func NewCommandHandler(cfg *config.Config, repo *repository.Repo, lib *library.Library, sched *playback.Scheduler, voice *stream.Manager) *CommandHandler {
	return &CommandHandler{cfg: cfg, repo: repo, lib: lib, sched: sched, voice: voice}
}

func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	slog.Info("registering application commands", "appID", appID, "guildID", guildID)

	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Queue an audio file and start playback",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "name", Description: "audio file name", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
			},
		},
		{Name: "pause", Description: "Pause the current track"},
		{Name: "resume", Description: "Resume a paused track"},
		{Name: "skip", Description: "Skip to the next track"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{Name: "clear", Description: "Clear the queue, keep the current track"},
		{Name: "loop", Description: "Toggle repeating the current track"},
		{Name: "queue", Description: "Show the current queue"},
		{Name: "now-playing", Description: "Show the current track with live progress"},
		{Name: "list", Description: "List available audio files"},
		{
			Name:        "upload",
			Description: "Upload an audio file to the library",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "file", Description: "audio file (mp3, wav, ogg, flac)", Type: discordgo.ApplicationCommandOptionAttachment, Required: true},
			},
		},
		{
			Name:        "playlist",
			Description: "Manage saved playlists",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "create", Description: "create an empty playlist",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "add a track to a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "track", Description: "audio file name", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "list playlists"},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "load", Description: "append a playlist to the queue",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "delete", Description: "delete a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
			},
		},
	}

	if guildID == "" {
		_, err := s.ApplicationCommandBulkOverwrite(appID, "", cmds)
		if err != nil {
			return err
		}
	} else {
		_, err := s.ApplicationCommandBulkOverwrite(appID, guildID, cmds)
		if err != nil {
			return err
		}
	}
	slog.Debug("commands registered", "guildID", guildID, "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.handleAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		slog.Debug("interaction: component", "guildID", i.GuildID, "userID", userIDOf(i), "customID", i.MessageComponentData().CustomID)
		h.handleComponent(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

// handleAutocomplete suggests library file names for track options.
func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var query string
	var collect func(opts []*discordgo.ApplicationCommandInteractionDataOption)
	collect = func(opts []*discordgo.ApplicationCommandInteractionDataOption) {
		for _, opt := range opts {
			if opt.Focused {
				query = opt.StringValue()
				return
			}
			collect(opt.Options)
		}
	}
	collect(i.ApplicationCommandData().Options)

	var choices []*discordgo.ApplicationCommandOptionChoice
	entries, err := h.lib.List()
	if err != nil {
		slog.Warn("autocomplete list failed", "guildID", i.GuildID, "err", err)
	}
	q := strings.ToLower(strings.TrimSpace(query))
	for _, e := range entries {
		if q != "" && !strings.Contains(strings.ToLower(e.Name), q) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: e.Name, Value: e.Name})
		if len(choices) == 25 {
			break
		}
	}
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "play":
		h.cmdPlay(s, i)
	case "pause":
		h.cmdPause(s, i)
	case "resume":
		h.cmdResume(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "stop":
		h.cmdStop(s, i)
	case "clear":
		h.cmdClear(s, i)
	case "loop":
		h.cmdLoop(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "now-playing":
		h.cmdNowPlaying(s, i)
	case "list":
		h.cmdList(s, i)
	case "upload":
		h.cmdUpload(s, i)
	case "playlist":
		h.cmdPlaylist(s, i)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
	}
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID := i.GuildID
	name := stringOption(i, "name")

	chID, ok := userInVoice(s, guildID, userIDOf(i))
	if !ok {
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}

	h.deferReply(s, i, false)

	if err := h.voice.Connect(guildID, chID); err != nil {
		slog.Warn("voice connect failed", "guildID", guildID, "channelID", chID, "err", err)
		h.editReply(s, i, "couldn't connect to the voice channel")
		return
	}

	ctx := context.Background()
	h.sched.SetVoiceTarget(ctx, guildID, chID)

	wasIdle := h.sched.Registry().GetOrCreate(guildID).Status() == playback.StatusIdle
	n, err := h.sched.Enqueue(ctx, guildID, name)
	switch {
	case errors.Is(err, playback.ErrNoConnection):
		h.editReply(s, i, "can't start playback right now, rejoin the channel and try again")
	case err != nil:
		slog.Error("enqueue failed", "guildID", guildID, "track", name, "err", err)
		h.editReply(s, i, "internal error")
	case wasIdle:
		h.editReply(s, i, fmt.Sprintf("▶️ Playing **%s**", utils.EscapeMd(name)))
	default:
		h.editReply(s, i, fmt.Sprintf("📥 **%s** queued (position %d)", utils.EscapeMd(name), n))
	}
}

func (h *CommandHandler) cmdPause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.sched.Pause(i.GuildID); err != nil {
		h.reply(s, i, "nothing to pause", true)
		return
	}
	h.reply(s, i, "⏸️ Paused", false)
}

func (h *CommandHandler) cmdResume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.sched.Resume(i.GuildID); err != nil {
		h.reply(s, i, "nothing to resume", true)
		return
	}
	h.reply(s, i, "▶️ Resumed", false)
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.sched.Skip(context.Background(), i.GuildID); err != nil {
		if errors.Is(err, playback.ErrWrongState) {
			h.reply(s, i, "nothing to skip", true)
			return
		}
		slog.Warn("skip failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "couldn't skip", true)
		return
	}
	h.reply(s, i, "⏭️ Skipped", false)
}

func (h *CommandHandler) cmdStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.sched.Stop(context.Background(), i.GuildID)
	h.voice.Disconnect(i.GuildID)
	h.reply(s, i, "⏹️ Stopped and cleared the queue", false)
}

func (h *CommandHandler) cmdClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	n := h.sched.ClearQueue(context.Background(), i.GuildID)
	h.reply(s, i, fmt.Sprintf("🧹 Cleared %d queued tracks", n), false)
}

func (h *CommandHandler) cmdLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if h.sched.ToggleLoop(i.GuildID) {
		h.reply(s, i, "🔂 Loop enabled", false)
	} else {
		h.reply(s, i, "➡️ Loop disabled", false)
	}
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	view := h.sched.Registry().GetOrCreate(i.GuildID).View()
	h.replyEmbed(s, i, ui.BuildQueueEmbed(view))
}

func (h *CommandHandler) cmdNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID := i.GuildID
	view := h.sched.Registry().GetOrCreate(guildID).ProgressView()
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{ui.BuildNowPlayingEmbed(view, 0)},
			Components: controlRow(userIDOf(i)),
		},
	}); err != nil {
		slog.Warn("now-playing reply failed", "guildID", guildID, "err", err)
		return
	}

	// the response message becomes the live display the reporter refreshes
	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		slog.Warn("fetch now-playing response failed", "guildID", guildID, "err", err)
		return
	}
	h.sched.SetDisplay(guildID, &playback.DisplayRef{ChannelID: msg.ChannelID, MessageID: msg.ID})
}

func (h *CommandHandler) cmdList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	entries, err := h.lib.List()
	if err != nil {
		slog.Error("library list failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "couldn't read the library", true)
		return
	}
	h.replyEmbed(s, i, ui.BuildLibraryEmbed(entries))
}

func (h *CommandHandler) cmdUpload(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	var att *discordgo.MessageAttachment
	for _, opt := range data.Options {
		if opt.Type != discordgo.ApplicationCommandOptionAttachment {
			continue
		}
		if id, ok := opt.Value.(string); ok && data.Resolved != nil {
			att = data.Resolved.Attachments[id]
		}
	}
	if att == nil {
		h.reply(s, i, "no file attached", true)
		return
	}
	if h.cfg.UploadLimitBytes > 0 && int64(att.Size) > h.cfg.UploadLimitBytes {
		h.reply(s, i, "file is too large", true)
		return
	}

	h.deferReply(s, i, false)

	resp, err := http.Get(att.URL)
	if err != nil {
		slog.Warn("attachment download failed", "guildID", i.GuildID, "err", err)
		h.editReply(s, i, "download failed")
		return
	}
	defer resp.Body.Close()

	var src io.Reader = resp.Body
	if h.cfg.UploadLimitBytes > 0 {
		src = io.LimitReader(resp.Body, h.cfg.UploadLimitBytes)
	}
	if _, err := h.lib.SaveUpload(att.Filename, src); err != nil {
		if errors.Is(err, library.ErrUnsupportedFormat) {
			h.editReply(s, i, "unsupported format, accepted: mp3, wav, ogg, flac")
			return
		}
		slog.Error("upload save failed", "guildID", i.GuildID, "file", att.Filename, "err", err)
		h.editReply(s, i, "couldn't save the file")
		return
	}
	h.editReply(s, i, fmt.Sprintf("✅ **%s** uploaded", utils.EscapeMd(att.Filename)))
}

func (h *CommandHandler) cmdPlaylist(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	ctx := context.Background()
	guildID := i.GuildID

	switch sub.Name {
	case "create":
		name := subOption(sub, "name")
		if err := h.repo.CreatePlaylist(ctx, guildID, name); err != nil {
			h.reply(s, i, "couldn't create the playlist (does it already exist?)", true)
			return
		}
		h.reply(s, i, fmt.Sprintf("💾 Playlist **%s** created", utils.EscapeMd(name)), false)

	case "add":
		name := subOption(sub, "name")
		track := subOption(sub, "track")
		if _, err := h.lib.Resolve(track); err != nil {
			h.reply(s, i, "no such audio file", true)
			return
		}
		if err := h.repo.AddPlaylistTrack(ctx, guildID, name, track); err != nil {
			if errors.Is(err, repository.ErrPlaylistNotFound) {
				h.reply(s, i, "no such playlist", true)
				return
			}
			slog.Error("playlist add failed", "guildID", guildID, "playlist", name, "err", err)
			h.reply(s, i, "internal error", true)
			return
		}
		h.reply(s, i, fmt.Sprintf("✅ **%s** added to **%s**", utils.EscapeMd(track), utils.EscapeMd(name)), false)

	case "list":
		playlists, err := h.repo.ListPlaylists(ctx, guildID)
		if err != nil {
			slog.Error("playlist list failed", "guildID", guildID, "err", err)
			h.reply(s, i, "internal error", true)
			return
		}
		h.replyEmbed(s, i, ui.BuildPlaylistsEmbed(playlists))

	case "load":
		name := subOption(sub, "name")
		pl, err := h.repo.GetPlaylist(ctx, guildID, name)
		if err != nil {
			if errors.Is(err, repository.ErrPlaylistNotFound) {
				h.reply(s, i, "no such playlist", true)
				return
			}
			slog.Error("playlist load failed", "guildID", guildID, "playlist", name, "err", err)
			h.reply(s, i, "internal error", true)
			return
		}
		h.deferReply(s, i, false)
		added := 0
		for _, track := range pl.Tracks {
			if _, err := h.sched.Enqueue(ctx, guildID, track); err != nil && !errors.Is(err, playback.ErrNoConnection) {
				slog.Warn("playlist enqueue failed", "guildID", guildID, "track", track, "err", err)
				continue
			}
			added++
		}
		h.editReply(s, i, fmt.Sprintf("📂 Queued %d tracks from **%s**", added, utils.EscapeMd(name)))

	case "delete":
		name := subOption(sub, "name")
		if err := h.repo.DeletePlaylist(ctx, guildID, name); err != nil {
			h.reply(s, i, "no such playlist", true)
			return
		}
		h.reply(s, i, fmt.Sprintf("🗑️ Playlist **%s** deleted", utils.EscapeMd(name)), false)
	}
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}); err != nil {
		slog.Warn("embed reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func stringOption(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

func subOption(sub *discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range sub.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

func userInVoice(s *discordgo.Session, guildID, userID string) (channelID string, ok bool) {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		g, _ = s.Guild(guildID)
	}
	if g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}
