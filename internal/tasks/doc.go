// Package tasks orchestrates synchronization, pairing, proof-of-play
// reporting and push notifications for the player.
//
// # Core Operations
//
// The [Engine] performs the conditional playlist sync:
//
//  1. Sends the screen key and cached version token to the backend
//  2. On 304 returns the cached playlist unchanged (reference-identical,
//     no download activity)
//  3. On an update, materializes every non-web item through the media
//     cache one at a time, persists the new playlist wholesale, then
//     sweeps cache entries the new playlist no longer references
//  4. On a 404 clears the local playlist and version so the supervisor
//     can re-pair with a regenerated identity
//  5. On network failure serves the cached playlist when one exists, so
//     playback continues offline
//
// [PairingCoordinator] owns the device identity lifecycle
// (Unregistered -> Registering -> AwaitingActivation -> Activated) and
// polls sync at a fixed interval, bounded by an attempt count, until the
// backend assigns a real playlist.
//
// [ProofOfPlayLogger] appends playback events to the durable queue and
// uploads them in a single all-or-nothing batch.
//
// [RealtimeChannel] holds the push connection that short-circuits the sync
// interval, reconnecting on a fixed backoff until explicitly stopped.
//
// [Player] is the top-level supervisor wiring all of the above to the
// playback scheduler, and the only layer allowed to surface a blocking
// error state when no cached content exists.
//
// # Progress Reporting
//
// Long operations send [ProgressUpdate] values over non-blocking channels
// so CLI and TUI layers can render download progress without ever stalling
// a sync.
package tasks
