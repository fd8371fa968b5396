package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Manager owns one voice connection per guild and the stream session playing
// over it. It implements the scheduler's Transport and Connector contracts.
type Manager struct {
	mu      sync.Mutex
	session *discordgo.Session
	guilds  map[string]*guildVoice
}

type guildVoice struct {
	vc        *discordgo.VoiceConnection
	channelID string
	cur       *playSession
}

func NewManager() *Manager {
	return &Manager{guilds: make(map[string]*guildVoice)}
}

// Bind attaches the discord session. Must be called before any connect.
func (m *Manager) Bind(s *discordgo.Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
}

// Connect joins (or moves to) a voice channel for the guild.
func (m *Manager) Connect(guildID, channelID string) error {
	m.mu.Lock()
	s := m.session
	gv := m.guilds[guildID]
	if s == nil {
		m.mu.Unlock()
		return fmt.Errorf("voice manager not bound to a session")
	}
	// already on the same channel
	if gv != nil && gv.vc != nil && gv.channelID == channelID {
		m.mu.Unlock()
		return nil
	}
	var old *discordgo.VoiceConnection
	if gv != nil {
		old = gv.vc
		gv.vc = nil
		gv.channelID = ""
	}
	m.mu.Unlock()

	if old != nil {
		_ = old.Speaking(false)
		_ = old.Disconnect(context.Background())
	}

	vc, err := s.ChannelVoiceJoin(context.Background(), guildID, channelID, false, true)
	if err != nil {
		return err
	}
	ensureVoiceChannels(vc)

	m.mu.Lock()
	if m.guilds[guildID] == nil {
		m.guilds[guildID] = &guildVoice{}
	}
	m.guilds[guildID].vc = vc
	m.guilds[guildID].channelID = channelID
	m.mu.Unlock()

	slog.Info("voice connected", "guildID", guildID, "channelID", channelID)
	return nil
}

// EnsureVoiceConnection satisfies the recovery connector contract.
func (m *Manager) EnsureVoiceConnection(guildID, channelID string) error {
	return m.Connect(guildID, channelID)
}

// Disconnect stops any stream and leaves the voice channel.
func (m *Manager) Disconnect(guildID string) {
	m.mu.Lock()
	gv := m.guilds[guildID]
	var vc *discordgo.VoiceConnection
	var cur *playSession
	if gv != nil {
		vc = gv.vc
		cur = gv.cur
		gv.vc = nil
		gv.channelID = ""
		gv.cur = nil
	}
	m.mu.Unlock()

	if cur != nil {
		cur.cancel()
	}
	if vc != nil {
		_ = safeDisconnect(guildID, vc)
	}
}

// safeDisconnect disconnects a voice connection with proper cleanup.
func safeDisconnect(guildID string, vc *discordgo.VoiceConnection) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("voice disconnect panic recovered", "panic", r, "guildID", guildID)
		}
	}()

	ensureVoiceChannels(vc)
	_ = vc.Speaking(false)

	// let pending sends drain before tearing down
	time.Sleep(150 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return vc.Disconnect(ctx)
}

// ensureVoiceChannels prevents a panic in discordgo's Kill() when it closes
// nil channels.
func ensureVoiceChannels(vc *discordgo.VoiceConnection) {
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
}

func isVoiceReady(vc *discordgo.VoiceConnection) bool {
	if vc == nil {
		return false
	}
	ensureVoiceChannels(vc)
	return vc.Ready
}
