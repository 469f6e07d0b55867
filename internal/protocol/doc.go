// Package protocol defines the websocket message-type enumeration and the
// frame codec shared with the server.
//
// # Framing
//
// A frame is a two character, zero padded decimal type code followed by an
// optional JSON payload:
//
//	02{"id":12,"op":10,"body":"hi"}
//	30{"board":"a","thread":10}
//
// Type MessageConcat carries several frames joined by a NUL byte; Decode
// flattens them in order.
//
// # Forward Compatibility
//
// The enumeration is closed per protocol version. Decode never fails a whole
// frame because of one unknown or malformed part: it returns every part it
// could decode together with a *DecodeError for each part it could not.
package protocol
