// Package push consumes the server's new-reply notification stream.
//
// The stream is a server-sent event feed of JSON notifications. It is a
// fallback path separate from the websocket protocol: notifications are
// delivered to OnNotification listeners and never enter the message
// dispatcher. The client reconnects at a fixed interval after every
// stream failure and suppresses notifications it has already delivered.
package push
