package realtime

import (
	"encoding/json"
	"time"

	"Tribe/tools/errs"

	"github.com/mitchellh/mapstructure"
)

// Kind tags every frame on the event channel. The set is closed; frames
// with any other kind are rejected at the boundary.
type Kind string

// Server -> client.
const (
	KindNewPost         Kind = "newPost"
	KindPostUpdated     Kind = "postUpdated"
	KindPostDeleted     Kind = "postDeleted"
	KindNewMessage      Kind = "newMessage"
	KindNewTribeMessage Kind = "newTribeMessage"
	KindNewNotification Kind = "newNotification"
	KindUserUpdated     Kind = "userUpdated"
	KindOnlineUsers     Kind = "getOnlineUsers"
)

// Client -> server control.
const (
	KindJoinRoom  Kind = "joinRoom"
	KindLeaveRoom Kind = "leaveRoom"
)

func (k Kind) valid() bool {
	switch k {
	case KindNewPost, KindPostUpdated, KindPostDeleted,
		KindNewMessage, KindNewTribeMessage, KindNewNotification,
		KindUserUpdated, KindOnlineUsers, KindJoinRoom, KindLeaveRoom:
		return true
	}
	return false
}

// Frame is the wire envelope. Payload stays raw until the receiver
// decodes it into the kind's typed payload.
type Frame struct {
	Kind    Kind            `json:"kind"`
	Ts      int64           `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewFrame(kind Kind, payload any) (*Frame, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errs.WrapMsg(err, "marshal payload", "kind", kind)
		}
		raw = b
	}
	return &Frame{Kind: kind, Ts: time.Now().UnixMilli(), Payload: raw}, nil
}

func (f *Frame) Marshal() ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, errs.WrapMsg(err, "marshal frame", "kind", f.Kind)
	}
	return b, nil
}

// ParseFrame validates the envelope; unknown kinds fail here so nothing
// downstream has to care.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("unmarshal frame", "err", err)
	}
	if !f.Kind.valid() {
		return nil, errs.ErrArgs.WrapMsg("unknown frame kind", "kind", string(f.Kind))
	}
	return &f, nil
}

// DecodePayload decodes the frame payload into T via a json-tagged
// mapstructure pass. ErrorUnused rejects fields T does not declare, so a
// malformed or oversized payload fails at the channel boundary instead
// of being trusted at use-site.
func DecodePayload[T any](f *Frame) (*T, error) {
	if f == nil {
		return nil, errs.ErrArgs.WrapMsg("nil frame")
	}
	if len(f.Payload) == 0 {
		return nil, errs.ErrArgs.WrapMsg("empty payload", "kind", string(f.Kind))
	}
	var m map[string]any
	if err := json.Unmarshal(f.Payload, &m); err != nil {
		return nil, errs.ErrArgs.WrapMsg("payload not an object", "kind", string(f.Kind))
	}
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "new decoder")
	}
	if err := dec.Decode(m); err != nil {
		return nil, errs.ErrArgs.WrapMsg("decode payload", "kind", string(f.Kind), "err", err)
	}
	return &out, nil
}

// Typed payloads for frames that do not carry a whole entity.

type RoomPayload struct {
	Room string `json:"room"`
}

type DeletedPayload struct {
	ID string `json:"id"`
}

type OnlineUsersPayload struct {
	Users []string `json:"users"`
}
