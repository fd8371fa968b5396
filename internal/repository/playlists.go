package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var ErrPlaylistNotFound = errors.New("playlist not found")

func (r *Repo) CreatePlaylist(ctx context.Context, guildID, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO playlists(guild_id, name) VALUES (?,?)`,
		guildID, strings.TrimSpace(name),
	)
	return err
}

func (r *Repo) AddPlaylistTrack(ctx context.Context, guildID, name, trackName string) error {
	id, err := r.playlistID(ctx, guildID, name)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO playlist_tracks(playlist_id, position, track_name)
		VALUES (?, COALESCE((SELECT MAX(position)+1 FROM playlist_tracks WHERE playlist_id=?), 0), ?)`,
		id, id, trackName,
	)
	return err
}

func (r *Repo) GetPlaylist(ctx context.Context, guildID, name string) (*Playlist, error) {
	id, err := r.playlistID(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT track_name FROM playlist_tracks WHERE playlist_id=? ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pl := &Playlist{ID: id, GuildID: guildID, Name: strings.TrimSpace(name)}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		pl.Tracks = append(pl.Tracks, t)
	}
	return pl, rows.Err()
}

func (r *Repo) ListPlaylists(ctx context.Context, guildID string) ([]Playlist, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, COUNT(t.track_name)
		FROM playlists p LEFT JOIN playlist_tracks t ON t.playlist_id = p.id
		WHERE p.guild_id = ?
		GROUP BY p.id ORDER BY p.name ASC`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Playlist
	for rows.Next() {
		var pl Playlist
		if err := rows.Scan(&pl.ID, &pl.Name, &pl.TrackCount); err != nil {
			return nil, err
		}
		pl.GuildID = guildID
		out = append(out, pl)
	}
	return out, rows.Err()
}

func (r *Repo) DeletePlaylist(ctx context.Context, guildID, name string) error {
	id, err := r.playlistID(ctx, guildID, name)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id=?`, id)
	_, err = r.db.ExecContext(ctx, `DELETE FROM playlists WHERE id=?`, id)
	return err
}

func (r *Repo) playlistID(ctx context.Context, guildID, name string) (int64, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id FROM playlists WHERE guild_id=? AND name=?`, guildID, strings.TrimSpace(name))
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrPlaylistNotFound
		}
		return 0, err
	}
	return id, nil
}
