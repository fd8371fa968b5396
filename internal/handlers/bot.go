package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"boombox/internal/config"
	"boombox/internal/library"
	"boombox/internal/playback"
	"boombox/internal/repository"
	"boombox/internal/stream"
	"boombox/internal/ui"
)

type Bot struct {
	cfg      *config.Config
	repo     *repository.Repo
	lib      *library.Library
	registry *playback.Registry
	voice    *stream.Manager
	sched    *playback.Scheduler
	cmd      *CommandHandler
}

func NewBot(cfg *config.Config, repo *repository.Repo, lib *library.Library) *Bot {
	registry := playback.NewRegistry()
	voice := stream.NewManager()
	sched := playback.NewScheduler(registry, repo, lib, voice)
	cmd := NewCommandHandler(cfg, repo, lib, sched, voice)
	return &Bot{
		cfg: cfg, repo: repo, lib: lib,
		registry: registry, voice: voice, sched: sched, cmd: cmd,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	dg.Identify.Presence.Status = b.cfg.BotStatus
	b.voice.Bind(dg)

	var recoverOnce sync.Once

	// On ready: register commands depending on configuration, then recover
	// persisted queues once the gateway is usable.
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username)
		appID := s.State.User.ID

		if b.cfg.RegisterCommandsOnBot {
			if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			} else {
				slog.Info("registered global application commands")
			}
		} else {
			var wg sync.WaitGroup
			for _, g := range s.State.Guilds {
				wg.Add(1)
				go func(guildID string) {
					defer wg.Done()
					if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
						slog.Error("register guild commands", "guild", guildID, "err", err)
					}
				}(g.ID)
			}
			wg.Wait()
			slog.Info("registered commands on all guilds")
		}

		recoverOnce.Do(func() {
			go func() {
				rec := playback.NewRecovery(b.registry, b.repo, b.sched, b.voice)
				if err := rec.Run(context.Background()); err != nil {
					slog.Error("startup recovery failed", "err", err)
				}
			}()
		})
	})

	// If registering per-guild, register on new guilds too
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		appID := s.State.User.ID
		if err := b.cmd.RegisterCommands(s, appID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		}
	})

	dg.AddHandler(b.cmd.HandleInteraction)

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	reporter := playback.NewReporter(b.registry, ui.NewProgressRenderer(dg), playback.DefaultReportInterval)
	go reporter.Run(ctx)

	<-ctx.Done()
	return nil
}
