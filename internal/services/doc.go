// Package services defines the [Backend] interface for the signage control
// plane and implements it over HTTP.
//
// # Backend Interface
//
// The player talks to the backend through five operations: registration,
// conditional playlist sync, rotation reporting, proof-of-play submission
// and media download. All identified calls carry the screen key in the
// X-Screen-Key header; sync additionally sends the cached playlist version
// in X-Playlist-Version so the server can short-circuit with 304.
//
// # Response Classification
//
// [APIService] converts HTTP outcomes into the shared error taxonomy:
//   - transport failures wrap [shared.ErrNetwork] (caller falls back to
//     the cached playlist)
//   - 404 on sync wraps [shared.ErrScreenNotFound] (identity was deleted
//     server-side, triggers re-pairing with a fresh key)
//   - sentinel playlist names ("Ecran Neactivat", "Niciun Playlist
//     Asignat") and the version sentinel "none" wrap [shared.ErrNotActivated]
//   - remaining non-2xx statuses wrap [shared.ErrServer]
//
// The sentinel names are a backend quirk: an unactivated screen still gets
// a 200 with a placeholder playlist instead of an error status.
package services
