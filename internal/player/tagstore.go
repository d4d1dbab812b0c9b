package player

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/database"
)

// TagMapping is one row of the tags table: which media a tag plays and
// where playback last stopped.
type TagMapping struct {
	UID         string
	PlaylistURI string
	LastTrack   string
	LastPosMS   int
}

// ErrTagUnknown is returned by Resolve for a tag with no mapping.
var ErrTagUnknown = errors.New("tag not mapped")

const tagSchema = `
CREATE TABLE IF NOT EXISTS tags (
	uid            TEXT PRIMARY KEY,
	playlist_uri   TEXT NOT NULL,
	last_track_uri TEXT NOT NULL DEFAULT '',
	last_pos_ms    INTEGER NOT NULL DEFAULT 0,
	updated_at     INTEGER NOT NULL DEFAULT 0
)`

// TagStore persists the tag-to-media mapping and playback progress.
type TagStore struct {
	db *database.DB
}

// NewTagStore binds the store to an open database, creating the tags
// table on first use.
func NewTagStore(db *database.DB) (*TagStore, error) {
	if _, err := db.Exec(tagSchema); err != nil {
		return nil, fmt.Errorf("creating tags table: %w", err)
	}
	return &TagStore{db: db}, nil
}

// Resolve looks up the mapping for uid. Returns ErrTagUnknown when the
// tag has never been provisioned.
func (s *TagStore) Resolve(uid string) (TagMapping, error) {
	var m TagMapping
	err := s.db.QueryRow(
		`SELECT uid, playlist_uri, last_track_uri, last_pos_ms FROM tags WHERE uid = ?`, uid,
	).Scan(&m.UID, &m.PlaylistURI, &m.LastTrack, &m.LastPosMS)
	if errors.Is(err, sql.ErrNoRows) {
		return TagMapping{}, ErrTagUnknown
	}
	if err != nil {
		return TagMapping{}, fmt.Errorf("resolving tag %s: %w", uid, err)
	}
	return m, nil
}

// SaveProgress records where playback stopped for uid. A tag that was
// deleted mid-session is not an error; the update simply hits no rows.
func (s *TagStore) SaveProgress(uid, trackURI string, posMS int) error {
	if posMS < 0 {
		posMS = 0
	}
	_, err := s.db.Exec(
		`UPDATE tags SET last_track_uri = ?, last_pos_ms = ?, updated_at = strftime('%s','now') WHERE uid = ?`,
		trackURI, posMS, uid,
	)
	if err != nil {
		return fmt.Errorf("saving progress for %s: %w", uid, err)
	}
	return nil
}

// Put inserts or replaces a mapping. Used by provisioning tooling.
func (s *TagStore) Put(m TagMapping) error {
	_, err := s.db.Exec(
		`INSERT INTO tags (uid, playlist_uri, last_track_uri, last_pos_ms, updated_at)
		 VALUES (?, ?, ?, ?, strftime('%s','now'))
		 ON CONFLICT(uid) DO UPDATE SET
			playlist_uri = excluded.playlist_uri,
			last_track_uri = excluded.last_track_uri,
			last_pos_ms = excluded.last_pos_ms,
			updated_at = excluded.updated_at`,
		m.UID, m.PlaylistURI, m.LastTrack, m.LastPosMS,
	)
	if err != nil {
		return fmt.Errorf("storing tag %s: %w", m.UID, err)
	}
	return nil
}
