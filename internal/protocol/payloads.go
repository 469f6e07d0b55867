// ABOUTME: JSON payload shapes for the message types the client handles
// ABOUTME: Field names follow the server's wire format

package protocol

// SyncRequest asks the server to stream updates for a page.
type SyncRequest struct {
	Board  string `json:"board"`
	Thread uint64 `json:"thread"`
}

// ResyncRequest is a SyncRequest sent after a connection loss. ID lets the
// server recover state it held for the previous connection.
type ResyncRequest struct {
	SyncRequest
	ID string `json:"id"`
}

// SyncResponse is the server's "caught up" acknowledgement.
type SyncResponse struct {
	Recent []uint64 `json:"recent,omitempty"` // posts created within the last 15 minutes
}

// Link is a reference from a post body to another post: [target, target's thread].
type Link [2]uint64

// Post is the payload of insertPost.
type Post struct {
	ID      uint64 `json:"id"`
	OP      uint64 `json:"op"`
	Board   string `json:"board,omitempty"`
	Time    int64  `json:"time"`
	Body    string `json:"body,omitempty"`
	Editing bool   `json:"editing,omitempty"`
	Links   []Link `json:"links,omitempty"`
}

// Thread is the payload of insertThread. The thread root is itself a post.
type Thread struct {
	Post
	Subject string `json:"subject,omitempty"`
}

// Backlink records that post By (in thread ByOP) quotes post ID.
type Backlink struct {
	ID   uint64 `json:"id"`
	By   uint64 `json:"by"`
	ByOP uint64 `json:"byOP"`
}

// Ban is the payload of banned.
type Ban struct {
	ID     uint64 `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// Notification is a new-reply notification. The push fallback channel
// delivers the same shape as a server-sent event.
type Notification struct {
	ID    uint64 `json:"id"`
	OP    uint64 `json:"op"`
	Board string `json:"board"`
	Time  int64  `json:"time,omitempty"`
}

// Append adds one character to an open post: [post id, code point].
type Append [2]uint64

// Splice replaces part of the last line of an open post's body. Start and
// Len count characters, not bytes. Len -1 replaces through the line end.
type Splice struct {
	ID    uint64 `json:"id"`
	Start int    `json:"start"`
	Len   int    `json:"len"`
	Text  string `json:"text"`
}

// Image is the payload of insertImage.
type Image struct {
	ID      uint64 `json:"id"`
	Spoiler bool   `json:"spoiler,omitempty"`
	Name    string `json:"name,omitempty"`
}
