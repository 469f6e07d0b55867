// Package session composes the sync core for one client view.
//
// A Session owns one connection manager, one sync state machine, one
// message dispatcher, the post index, the hide propagator and a handle on
// the local store. Nothing is global: every piece is created in New, started
// in Start and released in Close, so independent sessions can coexist in
// one process.
//
// # Lifecycle
//
//	s, err := session.New(cfg)
//	if err := s.Start(ctx); err != nil { ... }
//	defer s.Close()
//
// Start opens the store, loads the user's options (a failure here blocks
// the session), restores persisted hides, then starts the connection
// manager and, when configured, the notification stream.
//
// # Synchronisation
//
// Every time the transport opens, the session enters syncing and sends a
// synchronise request for its page. Once a session has been synced, later
// requests are resynchronise requests carrying the session's client ID.
// The server's synchronise reply moves the session to synced.
package session
