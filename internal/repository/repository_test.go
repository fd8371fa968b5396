package repository

import (
	"context"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"boombox/internal/config"
	"boombox/internal/playback"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := OpenDB(&config.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepo(db)
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	snap := playback.Snapshot{
		GuildID:      "g1",
		CurrentTrack: "a.mp3",
		Queue: []playback.QueueItem{
			{Name: "b.mp3"},
			{Name: "up.mp3", TempFile: "/tmp/up.mp3"},
		},
		VoiceChannelID: "vc1",
	}
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.LoadSnapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CurrentTrack != "a.mp3" || got.VoiceChannelID != "vc1" {
		t.Fatalf("loaded = %+v", got)
	}
	if len(got.Queue) != 2 || got.Queue[0].Name != "b.mp3" || got.Queue[1].TempFile != "/tmp/up.mp3" {
		t.Fatalf("loaded queue = %+v", got.Queue)
	}
}

func TestSaveSnapshotOverwrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := playback.Snapshot{
		GuildID:      "g1",
		CurrentTrack: "a.mp3",
		Queue:        []playback.QueueItem{{Name: "b.mp3"}, {Name: "c.mp3"}},
	}
	if err := repo.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := playback.Snapshot{GuildID: "g1", CurrentTrack: "b.mp3"}
	if err := repo.SaveSnapshot(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.LoadSnapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CurrentTrack != "b.mp3" || len(got.Queue) != 0 {
		t.Fatalf("loaded = %+v, want the old queue rows gone", got)
	}
}

func TestLoadSnapshotUnknownGuild(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.LoadSnapshot(context.Background(), "nope")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.GuildID != "nope" || got.CurrentTrack != "" || len(got.Queue) != 0 {
		t.Fatalf("loaded = %+v, want empty snapshot", got)
	}
}

func TestLoadAllSnapshots(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, snap := range []playback.Snapshot{
		{GuildID: "g1", Queue: []playback.QueueItem{{Name: "a.mp3"}}, VoiceChannelID: "vc1"},
		{GuildID: "g2", CurrentTrack: "x.mp3"},
	} {
		if err := repo.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("save %s: %v", snap.GuildID, err)
		}
	}

	all, err := repo.LoadAllSnapshots(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(all))
	}
	if all[0].GuildID != "g1" || len(all[0].Queue) != 1 || all[0].Queue[0].Name != "a.mp3" {
		t.Fatalf("g1 = %+v", all[0])
	}
	if all[1].GuildID != "g2" || all[1].CurrentTrack != "x.mp3" {
		t.Fatalf("g2 = %+v", all[1])
	}
}

func TestPlaylistLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreatePlaylist(ctx, "g1", "chill"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, track := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		if err := repo.AddPlaylistTrack(ctx, "g1", "chill", track); err != nil {
			t.Fatalf("add %s: %v", track, err)
		}
	}

	pl, err := repo.GetPlaylist(ctx, "g1", "chill")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(pl.Tracks) != 3 || pl.Tracks[0] != "a.mp3" || pl.Tracks[2] != "c.mp3" {
		t.Fatalf("tracks = %v, want insertion order", pl.Tracks)
	}

	list, err := repo.ListPlaylists(ctx, "g1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "chill" || list[0].TrackCount != 3 {
		t.Fatalf("list = %+v", list)
	}

	// playlists are per guild
	if other, err := repo.ListPlaylists(ctx, "g2"); err != nil || len(other) != 0 {
		t.Fatalf("g2 list = %+v, %v", other, err)
	}

	if err := repo.DeletePlaylist(ctx, "g1", "chill"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetPlaylist(ctx, "g1", "chill"); !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("get after delete = %v, want ErrPlaylistNotFound", err)
	}
}

func TestPlaylistNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.AddPlaylistTrack(ctx, "g1", "nope", "a.mp3"); !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("add = %v, want ErrPlaylistNotFound", err)
	}
	if err := repo.DeletePlaylist(ctx, "g1", "nope"); !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("delete = %v, want ErrPlaylistNotFound", err)
	}
}
