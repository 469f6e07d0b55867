// Package syncstate tracks whether a session's view is caught up with the
// server.
//
// The machine has three statuses and three events:
//
//	disconnected --open-->     syncing
//	syncing      --caughtUp--> synced
//	syncing      --close-->    disconnected
//	synced       --close-->    disconnected
//
// Any other (status, event) pair leaves the status unchanged. In
// particular a caught-up acknowledgement that arrives while disconnected is
// ignored; the only route to synced is through syncing.
package syncstate
