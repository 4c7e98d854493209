// Package player implements the playback scheduler.
//
// The scheduler drives a cursor over the current playlist's items, wrapping
// modulo the playlist length indefinitely. Images and web content display
// for their configured duration; consecutive video items are grouped into a
// run and handed to the [RenderSurface] as one sub-sequence, with playback
// resuming after the run's last item ends.
//
// Every transition emits an END event for the previously active item
// followed by a START event for the new one. Items without resolvable local
// media are skipped rather than stalling the loop.
//
// Restarting (playlist swap, rotation change, external skip) always replaces
// the playback goroutine wholesale: the old loop is cancelled and joined
// before the new one starts, so two loops never run for the same purpose.
package player
