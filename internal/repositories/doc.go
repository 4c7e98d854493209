// Package repositories implements SQLite persistence for the player's
// local state.
//
// Key Implementations:
//   - [ScreenRepository] : the single persisted device identity
//   - [PlaylistRepository] : the current playlist, stored as a JSON blob
//     with its opaque version token and replaced wholesale on update
//   - [PlayLogRepository] : the durable proof-of-play queue; rows are
//     appended before playback continues and deleted only after a
//     confirmed batch upload
//
// Unlike server-side stores there is no multi-tenancy here: each table
// holds state for exactly one device, so screens and playlists keep at
// most one live row.
package repositories
