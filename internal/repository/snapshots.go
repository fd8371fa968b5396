package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"boombox/internal/playback"
)

// SaveSnapshot overwrites the guild's persisted queue and current track in a
// single transaction, so a concurrent load never observes a partial write.
func (r *Repo) SaveSnapshot(ctx context.Context, snap playback.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots(guild_id, current_track, voice_channel_id, updated_at) VALUES (?,?,?,?)`,
		snap.GuildID, snap.CurrentTrack, snap.VoiceChannelID, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("write snapshot row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshot_queue WHERE guild_id = ?`, snap.GuildID,
	); err != nil {
		return fmt.Errorf("clear snapshot queue: %w", err)
	}
	for pos, item := range snap.Queue {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_queue(guild_id, position, track_name, temp_file) VALUES (?,?,?,?)`,
			snap.GuildID, pos, item.Name, item.TempFile,
		); err != nil {
			return fmt.Errorf("write snapshot queue: %w", err)
		}
	}
	return tx.Commit()
}

// LoadSnapshot returns the last saved snapshot for a guild, or an empty one
// if nothing was ever persisted.
func (r *Repo) LoadSnapshot(ctx context.Context, guildID string) (playback.Snapshot, error) {
	snap := playback.Snapshot{GuildID: guildID}

	row := r.db.QueryRowContext(ctx,
		`SELECT current_track, voice_channel_id FROM snapshots WHERE guild_id = ?`, guildID)
	if err := row.Scan(&snap.CurrentTrack, &snap.VoiceChannelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snap, nil
		}
		return snap, err
	}

	queue, err := r.loadQueue(ctx, guildID)
	if err != nil {
		return snap, err
	}
	snap.Queue = queue
	return snap, nil
}

// LoadAllSnapshots returns every persisted snapshot, for startup recovery.
func (r *Repo) LoadAllSnapshots(ctx context.Context) ([]playback.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT guild_id, current_track, voice_channel_id FROM snapshots ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []playback.Snapshot
	for rows.Next() {
		var snap playback.Snapshot
		if err := rows.Scan(&snap.GuildID, &snap.CurrentTrack, &snap.VoiceChannelID); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		queue, err := r.loadQueue(ctx, out[i].GuildID)
		if err != nil {
			return nil, err
		}
		out[i].Queue = queue
	}
	return out, nil
}

func (r *Repo) loadQueue(ctx context.Context, guildID string) ([]playback.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT track_name, temp_file FROM snapshot_queue WHERE guild_id = ? ORDER BY position ASC`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queue []playback.QueueItem
	for rows.Next() {
		var item playback.QueueItem
		if err := rows.Scan(&item.Name, &item.TempFile); err != nil {
			return nil, err
		}
		queue = append(queue, item)
	}
	return queue, rows.Err()
}
