// Package events provides a typed fan-out emitter for status notifications.
//
// An Emitter has two kinds of consumers. Listeners registered with Listen
// are called synchronously, in registration order, from inside Emit, so
// they observe every value before Emit returns. Subscribers registered with
// Subscribe receive values on a buffered channel; values are dropped for
// subscribers whose buffer is full.
package events
