// Package dispatch routes decoded protocol messages to their handlers.
//
// Frames are dispatched strictly in the order they are handed to
// HandleFrame; the dispatcher never reorders or batches across frames. The
// connection manager calls HandleFrame from its single event loop, so
// handlers never run concurrently with each other.
//
// Unregistered type codes are silently ignored, and unknown or malformed
// codes are logged and dropped, so the server can add message types without
// breaking older clients.
package dispatch
