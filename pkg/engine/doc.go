// Package engine runs streaming queries against a conversational search
// backend and assembles their results.
//
// A run builds the wire request, opens one streaming connection, pulls
// events from the backend's reader and folds them into an [Accumulator]
// until a terminal event, the end of the stream, the run deadline, the idle
// timeout or a cancellation. Only a completed run produces a
// [api.FinalResponse]; every other outcome is an *api.Error and the partial
// answer is discarded. Runs never retry.
package engine
