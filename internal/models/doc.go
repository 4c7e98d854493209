// Package models defines the data model for the signage player.
//
// The wire types mirror the backend contract exactly: [Playlist] and
// [PlaylistItem] unmarshal the client/sync response body, [PlaybackLogEntry]
// marshals the reports/player-logs batch payload, and [Screen] is the locally
// persisted device identity the backend knows by its unique_key.
//
// A Playlist is replaced wholesale on every update and never mutated in
// place, so the playback scheduler can read the current reference without a
// lock. Derived cache metadata on [PlaylistItem] (local path, size, checksum)
// is populated by the media cache and persisted with the playlist blob; it is
// never sent to the server.
package models
