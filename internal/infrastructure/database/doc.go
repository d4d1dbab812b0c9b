// Package database opens the on-device SQLite store used for the
// tag-to-media mapping. WAL mode keeps reads cheap while the player
// daemon writes playback progress.
package database
