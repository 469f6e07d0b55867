// ABOUTME: Message type enumeration and frame encode/decode
// ABOUTME: Frames are a 2-digit type code followed by a JSON payload

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// MessageType identifies a websocket message.
type MessageType uint8

// 1 - 29 modify post model state
const (
	MessageInvalid MessageType = iota
	MessageInsertThread
	MessageInsertPost
	MessageAppend
	MessageBackspace
	MessageSplice
	MessageClosePost
	MessageBacklink
	MessageInsertImage
	MessageSpoiler
	MessageDeletePost
	MessageBanned
	MessageDeleteImage
	MessageLockThread
	MessageUnlockThread
)

// >= 30 are miscellaneous and do not write to post models
const (
	MessageSynchronise MessageType = 30 + iota
	MessageResynchronise
	MessageReclaim
	MessageConcat
	MessagePostID
	MessageNOOP
	MessageSyncCount
	MessageServerTime
	MessageRedirect
	MessageNotification
)

var typeNames = map[MessageType]string{
	MessageInvalid:       "invalid",
	MessageInsertThread:  "insertThread",
	MessageInsertPost:    "insertPost",
	MessageAppend:        "append",
	MessageBackspace:     "backspace",
	MessageSplice:        "splice",
	MessageClosePost:     "closePost",
	MessageBacklink:      "backlink",
	MessageInsertImage:   "insertImage",
	MessageSpoiler:       "spoiler",
	MessageDeletePost:    "deletePost",
	MessageBanned:        "banned",
	MessageDeleteImage:   "deleteImage",
	MessageLockThread:    "lockThread",
	MessageUnlockThread:  "unlockThread",
	MessageSynchronise:   "synchronise",
	MessageResynchronise: "resynchronise",
	MessageReclaim:       "reclaim",
	MessagePostID:        "postID",
	MessageConcat:        "concat",
	MessageNOOP:          "noop",
	MessageSyncCount:     "syncCount",
	MessageServerTime:    "serverTime",
	MessageRedirect:      "redirect",
	MessageNotification:  "notification",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// Known reports whether t belongs to this protocol version.
func (t MessageType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// ModifiesPosts reports whether messages of type t write to post models.
func (t MessageType) ModifiesPosts() bool {
	return t > MessageInvalid && t < MessageSynchronise
}

const concatSeparator = 0

var (
	// ErrMalformed is returned for frames that do not follow the framing rules
	ErrMalformed = errors.New("malformed frame")

	// ErrUnknownType is returned for type codes outside the enumeration
	ErrUnknownType = errors.New("unknown message type")
)

// DecodeError is the ProtocolDecodeError for one undecodable frame part.
type DecodeError struct {
	Type  MessageType // zero when the type code itself could not be read
	Frame string      // offending part, truncated for logging
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s frame %q: %v", e.Type, e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Message is one decoded frame.
type Message struct {
	Type    MessageType
	Payload json.RawMessage // nil when the frame carried no payload
}

// Unmarshal decodes the payload into v.
func (m Message) Unmarshal(v any) error {
	if len(m.Payload) == 0 {
		return &DecodeError{Type: m.Type, Err: fmt.Errorf("%w: empty payload", ErrMalformed)}
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return &DecodeError{Type: m.Type, Frame: truncate(string(m.Payload)), Err: err}
	}
	return nil
}

// Encode builds a frame. A nil payload produces a bare type code.
func Encode(t MessageType, payload any) ([]byte, error) {
	if t > 99 {
		return nil, fmt.Errorf("encoding %s: type code does not fit two digits", t)
	}
	frame := []byte{'0' + byte(t/10), '0' + byte(t%10)}
	if payload == nil {
		return frame, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	return append(frame, data...), nil
}

// Decode splits a frame into messages. Messages that decoded cleanly are
// returned in frame order even when err is non-nil; err joins one
// *DecodeError per dropped part.
func Decode(frame []byte) ([]Message, error) {
	var msgs []Message
	var errs []error
	decodeInto(frame, &msgs, &errs)
	return msgs, errors.Join(errs...)
}

func decodeInto(frame []byte, msgs *[]Message, errs *[]error) {
	if len(frame) < 2 || !isDigit(frame[0]) || !isDigit(frame[1]) {
		*errs = append(*errs, &DecodeError{Frame: truncate(string(frame)), Err: ErrMalformed})
		return
	}
	t := MessageType((frame[0]-'0')*10 + frame[1] - '0')
	body := frame[2:]

	if t == MessageConcat {
		start := 0
		for i := 0; i <= len(body); i++ {
			if i == len(body) || body[i] == concatSeparator {
				if i > start {
					decodeInto(body[start:i], msgs, errs)
				}
				start = i + 1
			}
		}
		return
	}

	if !t.Known() {
		*errs = append(*errs, &DecodeError{Type: t, Frame: truncate(string(frame)), Err: ErrUnknownType})
		return
	}

	var payload json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			*errs = append(*errs, &DecodeError{Type: t, Frame: truncate(string(frame)), Err: ErrMalformed})
			return
		}
		payload = append(json.RawMessage(nil), body...)
	}
	*msgs = append(*msgs, Message{Type: t, Payload: payload})
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func truncate(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
