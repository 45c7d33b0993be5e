// Package player keeps one embedded SoundCloud player in sync with its controls.
//
// A [Controller] owns the play button, the waveform [Canvas] and the current [Embed]. It listens on a
// [Bus] for the play-from-search event, resolves the requested track through a [services.Catalog] and
// persists a [Snapshot] of what is playing so the next page (or the next terminal session) can pick it up.
//
// Playlist pages start fresh: mounting a controller on a [PlaylistShow] page clears the stored snapshot and
// holds off persisting until a track is explicitly loaded.
package player
