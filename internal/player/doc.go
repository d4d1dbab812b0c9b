// Package player implements plsm, the player state manager.
//
// It resolves NFC tag UIDs to media through the SQLite tag store,
// drives the playback backend (a Spotify Connect device exposed by
// librespot), and persists playback progress so a tag resumes where it
// left off. The Librespot supervisor optionally manages the local
// librespot process.
package player
