// Package ui implements the terminal player using bubbletea's Elm architecture.
//
// One screen holds a search box, a result list and the player panel. The [Model] drives a
// [player.Controller] the same way the web page does:
//   - window resizes set the waveform canvas's rendered box and call Resize
//   - choosing a result dispatches play-from-search on the controller's bus
//   - space toggles play and pause
//   - the spinner runs while the play button is disabled by the loading UI
//   - the waveform is drawn from the canvas levels, with the played part highlighted
//
// Async work (search, track loading, the playback clock) reports back through the Msg union type.
package ui
