// Package conn owns the session's single websocket transport.
//
// A Manager runs one event loop (Run) that serializes every lifecycle
// event: dial results, received frames, transport closes, retry ticks and
// explicit Connect calls. Observers registered with Observe are invoked
// from that loop in registration order, so a close is always delivered to
// every observer before the reconnect ticker is armed.
//
// The reconnect policy is a fixed interval ticker that exists only while
// the manager is disconnected. Closing twice arms it once; a tick while a
// dial is still in flight is skipped; a successful open stops it.
package conn
