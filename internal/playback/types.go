package playback

import (
	"context"
	"errors"
	"time"
)

// Outcome reports how a single playback attempt ended.
type Outcome int

const (
	OutcomeFinished Outcome = iota
	OutcomeErrored
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFinished:
		return "finished"
	case OutcomeErrored:
		return "errored"
	case OutcomeStopped:
		return "stopped"
	}
	return "unknown"
}

// Track is one queue entry. Path and Duration are filled in lazily when the
// track is resolved; TempFile points at an ephemeral upload that should be
// deleted once the track leaves the queue for good.
type Track struct {
	Name     string
	Path     string
	Duration time.Duration
	TempFile string
}

// QueueItem is the persisted form of a queue entry.
type QueueItem struct {
	Name     string
	TempFile string
}

// Snapshot is the durable record of one guild's playback intent.
type Snapshot struct {
	GuildID        string
	Queue          []QueueItem
	CurrentTrack   string
	VoiceChannelID string
}

// DisplayRef identifies the message the progress reporter keeps refreshed.
type DisplayRef struct {
	ChannelID string
	MessageID string
}

// ProgressView is a point-in-time render input for a guild's display.
type ProgressView struct {
	TrackName      string
	Elapsed        time.Duration
	Duration       time.Duration
	TotalRemaining time.Duration
	Paused         bool
	Loop           bool
	QueueLen       int
}

var (
	// ErrNoConnection means a stream could not start because the guild has no
	// usable voice connection. The caller must reconnect and retry.
	ErrNoConnection = errors.New("no active voice connection")

	// ErrWrongState means the operation does not apply to the guild's current
	// playback state (e.g. pausing while idle).
	ErrWrongState = errors.New("operation not valid in current state")

	// ErrTargetGone is returned by a Renderer when the display message no
	// longer exists.
	ErrTargetGone = errors.New("display target gone")
)

// Transport turns a file into an actively streaming voice connection and
// reports completion exactly once per attempt.
type Transport interface {
	StartStream(guildID, path string, onComplete func(Outcome)) error
	StopStream(guildID string)
	PauseStream(guildID string)
	ResumeStream(guildID string)
}

// Library resolves track names to playable files.
type Library interface {
	Resolve(name string) (string, error)
	Duration(path string) time.Duration
}

// Store persists per-guild snapshots. Writes are best effort relative to
// in-memory state but are relied upon for restart recovery.
type Store interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context, guildID string) (Snapshot, error)
	LoadAllSnapshots(ctx context.Context) ([]Snapshot, error)
}

// Renderer pushes a progress update to a guild's display target.
type Renderer interface {
	Render(target DisplayRef, view ProgressView) error
}

// Connector re-establishes a voice connection, used during recovery.
type Connector interface {
	EnsureVoiceConnection(guildID, channelID string) error
}
