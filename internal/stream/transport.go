package stream

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"boombox/internal/playback"
)

type playSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	paused atomic.Bool
	done   chan struct{}
}

// StartStream decodes path and streams Opus packets over the guild's voice
// connection, invoking onComplete exactly once when the attempt ends. Any
// session already playing for the guild is cancelled first.
func (m *Manager) StartStream(guildID, path string, onComplete func(playback.Outcome)) error {
	m.mu.Lock()
	gv := m.guilds[guildID]
	if gv == nil || gv.vc == nil {
		m.mu.Unlock()
		return playback.ErrNoConnection
	}
	vc := gv.vc
	old := gv.cur
	gv.cur = nil
	m.mu.Unlock()

	if old != nil {
		old.cancel()
		select {
		case <-old.done:
		case <-time.After(2 * time.Second):
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	pcm, err := StartPCMStream(ctx, path)
	if err != nil {
		cancel()
		return err
	}
	enc, err := NewEncoder()
	if err != nil {
		pcm.Close()
		cancel()
		return err
	}

	sess := &playSession{ctx: ctx, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if m.guilds[guildID] == nil || m.guilds[guildID].vc != vc {
		// connection changed while preparing
		m.mu.Unlock()
		cancel()
		enc.Close()
		pcm.Close()
		return playback.ErrNoConnection
	}
	m.guilds[guildID].cur = sess
	m.mu.Unlock()

	go m.sendLoop(guildID, vc, sess, pcm, enc, onComplete)
	return nil
}

// StopStream cancels the guild's active session; the session's completion
// callback fires with a stopped outcome.
func (m *Manager) StopStream(guildID string) {
	m.mu.Lock()
	gv := m.guilds[guildID]
	var cur *playSession
	if gv != nil {
		cur = gv.cur
		gv.cur = nil
	}
	m.mu.Unlock()

	if cur != nil {
		cur.cancel()
	}
}

func (m *Manager) PauseStream(guildID string) {
	m.mu.Lock()
	gv := m.guilds[guildID]
	var cur *playSession
	var vc *discordgo.VoiceConnection
	if gv != nil {
		cur = gv.cur
		vc = gv.vc
	}
	m.mu.Unlock()

	if cur != nil {
		cur.paused.Store(true)
	}
	if vc != nil {
		_ = vc.Speaking(false)
	}
}

func (m *Manager) ResumeStream(guildID string) {
	m.mu.Lock()
	gv := m.guilds[guildID]
	var cur *playSession
	var vc *discordgo.VoiceConnection
	if gv != nil {
		cur = gv.cur
		vc = gv.vc
	}
	m.mu.Unlock()

	if cur != nil {
		cur.paused.Store(false)
	}
	if vc != nil {
		_ = vc.Speaking(true)
	}
}

func (m *Manager) sendLoop(
	guildID string,
	vc *discordgo.VoiceConnection,
	sess *playSession,
	pcm *PCMStream,
	enc *Encoder,
	onComplete func(playback.Outcome),
) {
	outcome := playback.OutcomeFinished
	defer func() {
		enc.Close()
		pcm.Close()
		sess.cancel()
		close(sess.done)
		m.clearSession(guildID, sess)
		onComplete(outcome)
	}()

	// wait for the voice connection to come up
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !isVoiceReady(vc) {
		select {
		case <-sess.ctx.Done():
			outcome = playback.OutcomeStopped
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	if !isVoiceReady(vc) {
		outcome = playback.OutcomeErrored
		return
	}

	_ = vc.Speaking(true)
	defer func() { _ = vc.Speaking(false) }()

	r := bufio.NewReaderSize(pcm.Stdout(), 64*1024)
	framePCM := make([]byte, enc.FrameBytes())
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if sess.paused.Load() {
			select {
			case <-sess.ctx.Done():
				outcome = playback.OutcomeStopped
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		if _, err := io.ReadFull(r, framePCM); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return // played to the end
			}
			if sess.ctx.Err() != nil {
				outcome = playback.OutcomeStopped
			} else {
				slog.Warn("pcm read failed", "guildID", guildID, "err", err)
				outcome = playback.OutcomeErrored
			}
			return
		}

		var outPkt []byte
		if err := enc.EncodeFrame(framePCM, func(pkt []byte) error {
			// copy: the packet buffer is reused by the encoder and the
			// previous send may still sit in the OpusSend channel
			outPkt = append([]byte(nil), pkt...)
			return nil
		}); err != nil {
			slog.Warn("opus encode failed", "guildID", guildID, "err", err)
			outcome = playback.OutcomeErrored
			return
		}
		if len(outPkt) == 0 {
			continue
		}

		select {
		case <-sess.ctx.Done():
			outcome = playback.OutcomeStopped
			return
		case <-ticker.C:
		}

		select {
		case <-sess.ctx.Done():
			outcome = playback.OutcomeStopped
			return
		case vc.OpusSend <- outPkt:
		case <-time.After(time.Second):
			slog.Warn("opus send timeout", "guildID", guildID)
			outcome = playback.OutcomeErrored
			return
		}
	}
}

func (m *Manager) clearSession(guildID string, sess *playSession) {
	m.mu.Lock()
	if gv := m.guilds[guildID]; gv != nil && gv.cur == sess {
		gv.cur = nil
	}
	m.mu.Unlock()
}
