package repository

import "database/sql"

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

type Playlist struct {
	ID         int64
	GuildID    string
	Name       string
	Tracks     []string
	TrackCount int
}
